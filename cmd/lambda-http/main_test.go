package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"findoc-gateway/internal/shared/server"
)

func resetProxy(t *testing.T, build func() (*gin.Engine, error)) {
	t.Helper()
	prev := buildRouter
	buildRouter = build
	initOnce = sync.Once{}
	initErr = nil
	proxy = nil
	t.Cleanup(func() {
		buildRouter = prev
		initOnce = sync.Once{}
		initErr = nil
		proxy = nil
	})
}

func TestHandlerProxiesToRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resetProxy(t, func() (*gin.Engine, error) {
		return server.NewRouter(server.RouterDeps{}), nil
	})

	resp, err := handler(context.Background(), events.APIGatewayV2HTTPRequest{
		RawPath: "/api/v1/health",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet, Path: "/api/v1/health"},
		},
		Headers: map[string]string{"x-session-id": "tab-1"},
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Body, `"ok":true`) {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestHandlerReportsBootstrapFailure(t *testing.T) {
	resetProxy(t, func() (*gin.Engine, error) {
		return nil, errors.New("DATABASE_URL is required")
	})

	resp, err := handler(context.Background(), events.APIGatewayV2HTTPRequest{RawPath: "/api/v1/health"})
	if err != nil {
		t.Fatalf("handler should not fail the invocation: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError || !strings.Contains(resp.Body, "internal_error") {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}
