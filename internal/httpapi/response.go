package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/riskgraph/internal/embedding"
	"github.com/yungbote/riskgraph/internal/graph"
	"github.com/yungbote/riskgraph/internal/node2vec"
	"github.com/yungbote/riskgraph/internal/riskmodel"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code, param string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    strings.TrimSpace(code),
			Param:   strings.TrimSpace(param),
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondServiceError maps service sentinels onto status codes.
func respondServiceError(c *gin.Context, param string, err error) {
	switch {
	case errors.Is(err, embedding.ErrModelNotTrained), errors.Is(err, riskmodel.ErrModelNotTrained):
		RespondError(c, http.StatusConflict, "model_not_trained", "", err)
	case errors.Is(err, embedding.ErrUnknownNode), errors.Is(err, riskmodel.ErrUnknownNode):
		RespondError(c, http.StatusNotFound, "unknown_node", param, err)
	case errors.Is(err, graph.ErrEmptyGraph):
		RespondError(c, http.StatusBadRequest, "empty_graph", "query", err)
	case errors.Is(err, node2vec.ErrInvalidOptions):
		RespondError(c, http.StatusBadRequest, "invalid_options", "", err)
	case errors.Is(err, riskmodel.ErrInvalidDataset):
		RespondError(c, http.StatusBadRequest, "invalid_dataset", "", err)
	case errors.Is(err, graph.ErrNoSource):
		RespondError(c, http.StatusServiceUnavailable, "graph_source_unavailable", "", err)
	case errors.Is(err, graph.ErrQuery), errors.Is(err, graph.ErrMalformedRow):
		RespondError(c, http.StatusBadGateway, "upstream_error", "", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		RespondError(c, http.StatusServiceUnavailable, "canceled", "", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", "", err)
	}
}
