package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware extracts W3C trace context and spans the handler chain.
// Once the chain returns it records the request id, the auth outcome the
// builder settled on, the principal and tenant when known, and the guard code
// of a denied request, so a trace can be joined against the access log.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "budgetauth"
	}
	tracer := otel.Tracer(serviceName + "/http")

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		name := "HTTP " + c.Request.Method + " " + c.Request.URL.Path
		ctx, span := tracer.Start(ctx, name,
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.path", c.Request.URL.Path),
				attribute.String("http.host", c.Request.Host),
			),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route != "" {
			span.SetName("HTTP " + c.Request.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		span.SetAttributes(attribute.Int("http.status_code", status))
		span.SetAttributes(authAttributes(c)...)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		span.End()
	}
}

func authAttributes(c *gin.Context) []attribute.KeyValue {
	ac := GetAuthContext(c)
	attrs := []attribute.KeyValue{attribute.String("budgetauth.auth.outcome", ac.Outcome())}
	if id := c.GetString(requestIDKey); id != "" {
		attrs = append(attrs, attribute.String("budgetauth.request_id", id))
	}
	if id := ac.UserID(); id != "" {
		attrs = append(attrs, attribute.String("enduser.id", id))
	}
	if id := ac.FamilyID(); id != "" {
		attrs = append(attrs, attribute.String("budgetauth.family_id", id))
	}
	if code := c.GetString(guardCodeKey); code != "" {
		attrs = append(attrs, attribute.String("budgetauth.guard.code", code))
	}
	return attrs
}
