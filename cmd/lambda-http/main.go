package main

// Build the Lambda binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http
//
// Memory scopes live only as long as the Lambda container; deployments set
// DURABLE_STORE=postgres or OBJECT_STORE=s3 and SESSION_STORE=redis.

import (
	"context"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"findoc-gateway/internal/bootstrap"
	"findoc-gateway/internal/shared/config"
	"findoc-gateway/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	initErr  error
	proxy    *ginadapter.GinLambdaV2

	buildRouter = func() (*gin.Engine, error) {
		app, err := bootstrap.Build(config.Load())
		if err != nil {
			return nil, err
		}
		return app.Router, nil
	}
)

func initProxy() {
	router, err := buildRouter()
	if err != nil {
		initErr = err
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"err": err})
		return
	}
	proxy = ginadapter.NewV2(router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initProxy)
	if initErr != nil || proxy == nil {
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":{"code":"internal_error","message":"gateway not initialized"}}`,
		}, nil
	}
	return proxy.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
