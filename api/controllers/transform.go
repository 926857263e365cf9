package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/getsum-node/api/responses"
	"github.com/angelmondragon/getsum-node/api/validators"
	"github.com/angelmondragon/getsum-node/internal/sum"
	pkgerrors "github.com/angelmondragon/getsum-node/pkg/errors"
	"github.com/angelmondragon/getsum-node/pkg/logger"
	"github.com/angelmondragon/getsum-node/pkg/message"
	"github.com/angelmondragon/getsum-node/pkg/types"
)

// Transformer runs a message through the node and returns where it goes next.
type Transformer interface {
	Handle(ctx context.Context, msg message.Message) sum.Decision
	Config() sum.NodeConfig
}

// NodeConfig handles GET /api/v1/node.
func NodeConfig(node Transformer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, node.Config())
	}
}

type transformRequest struct {
	Message message.Message `json:"message"`
}

// Transform handles POST /api/v1/transform. Failure routes are still a 200:
// the relation in the body tells the caller which link the message takes.
func Transform(node Transformer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transformRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.Message.ID == uuid.Nil {
			req.Message.ID = uuid.New()
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithMessageID(ctx, req.Message.ID.String())
		}

		decision := node.Handle(ctx, req.Message)
		resp := types.TransformResult{
			Relation: string(decision.Relation),
			Outcome:  string(decision.Outcome),
			Message:  decision.Message,
		}
		if decision.Err != nil {
			typed := pkgerrors.As(decision.Err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeInternal, decision.Err, decision.Err.Error())
			}
			resp.Error = &types.APIError{
				Code:    string(typed.Code()),
				Message: typed.Message(),
				Details: typed.Details(),
			}
			if typed.Code() == pkgerrors.CodeDecode && typed.Unwrap() != nil {
				resp.Error.Details = map[string]any{"cause": typed.Unwrap().Error()}
			}
			if logg != nil {
				logg.Info(logg.WithFields(ctx, map[string]any{
					"outcome":    resp.Outcome,
					"error_code": resp.Error.Code,
				}), "transform routed to failure")
			}
		}

		responses.WriteSuccess(w, resp)
	}
}
