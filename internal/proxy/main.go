// Package proxy contains the routes through which the portal UI reaches the
// upstream backend. Every forwarded request goes through the authenticated
// request pipeline, which owns the bearer credentials and the token refresh
// logic, so the UI never sees or handles tokens itself.
package proxy

import (
	"fmt"
	"io"
	"net/http"

	"github.com/codearena/portal-gateway/internal/config"
	"github.com/codearena/portal-gateway/internal/pipeline"
	"github.com/labstack/echo/v4"
)

// SilentHeader marks an inbound request as opted out of failure notifications
const SilentHeader = "X-Portal-Silent"

const maxInboundBodyBytes = 8 * 1024 * 1024

type Server struct {
	config   *config.UpstreamConfig
	pipeline *pipeline.Pipeline
}

func (s *Server) RegisterHandlers(e *echo.Echo, commonMiddlewares ...echo.MiddlewareFunc) {
	e.Group("/api", append(commonMiddlewares, noCookies)...).Any("/*", s.forward)
}

// forward turns an inbound portal request into a pipeline descriptor, submits
// it and writes the outcome back. Terminal pipeline failures become a JSON
// error payload carrying only the human-safe message.
func (s *Server) forward(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxInboundBodyBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read the request body")
	}

	target := *s.config.BaseURL
	target.Path = joinPath(target.Path, req.URL.Path)
	target.RawQuery = req.URL.RawQuery

	descriptor, err := pipeline.NewDescriptor(req.Method, target.String(), outboundHeader(req.Header), body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	descriptor.Silent = req.Header.Get(SilentHeader) == "1"

	res, err := s.pipeline.Send(req.Context(), descriptor)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	for name, values := range responseHeader(res.Header) {
		c.Response().Header()[name] = values
	}
	c.Response().WriteHeader(res.StatusCode)
	_, err = io.Copy(c.Response().Writer, res.Body)
	return err
}

type ServerOption func(*Server) error

func WithConfig(upstreamConfig config.UpstreamConfig) ServerOption {
	return func(s *Server) error {
		if err := upstreamConfig.Validate(); err != nil {
			return err
		}
		s.config = &upstreamConfig
		return nil
	}
}

func WithPipeline(p *pipeline.Pipeline) ServerOption {
	return func(s *Server) error {
		s.pipeline = p
		return nil
	}
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := Server{}
	for _, opt := range options {
		err := opt(&server)
		if err != nil {
			return nil, err
		}
	}
	if server.config == nil {
		return nil, fmt.Errorf("upstream config not initialized")
	}
	if server.pipeline == nil {
		return nil, fmt.Errorf("request pipeline not initialized")
	}
	return &server, nil
}
