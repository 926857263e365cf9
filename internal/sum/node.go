package sum

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/angelmondragon/getsum-node/pkg/enums"
	pkgerrors "github.com/angelmondragon/getsum-node/pkg/errors"
	"github.com/angelmondragon/getsum-node/pkg/message"
)

var validate = validator.New()

// NodeConfig is the configuration surface of the sum node.
type NodeConfig struct {
	InputKey  string `json:"inputKey" validate:"required"`
	OutputKey string `json:"outputKey" validate:"required"`
}

// Decision tells the host which link to dispatch Message on.
type Decision struct {
	Relation enums.RelationType
	Outcome  Outcome
	Message  message.Message
	Err      error
}

// Node applies the aggregator to pipeline messages and maps each outcome to
// a routing decision.
type Node struct {
	aggregator *Aggregator
}

func NewNode(cfg NodeConfig) (*Node, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sum node config")
	}
	return &Node{aggregator: NewAggregator(cfg.InputKey, cfg.OutputKey)}, nil
}

func (n *Node) Config() NodeConfig {
	return NodeConfig{InputKey: n.aggregator.InputPrefix(), OutputKey: n.aggregator.OutputKey()}
}

// Handle never returns the original message on success: the produced payload
// travels in a new message that keeps type, originator and metadata.
func (n *Node) Handle(ctx context.Context, msg message.Message) Decision {
	result := n.aggregator.Aggregate([]byte(msg.Data))
	switch result.Outcome {
	case OutcomeProduced:
		return Decision{
			Relation: enums.RelationSuccess,
			Outcome:  result.Outcome,
			Message:  msg.WithData(result.Data),
		}
	case OutcomeNoMatch:
		err := pkgerrors.Wrap(
			pkgerrors.CodeNoMatch,
			ErrNoMatch,
			fmt.Sprintf("message doesn't contain the key: %s", n.aggregator.InputPrefix()),
		).WithDetails(map[string]any{"inputKey": n.aggregator.InputPrefix()})
		return Decision{Relation: enums.RelationFailure, Outcome: result.Outcome, Message: msg, Err: err}
	default:
		cause := result.Err
		if cause == nil {
			cause = errors.New("unknown aggregation failure")
		}
		return Decision{
			Relation: enums.RelationFailure,
			Outcome:  OutcomeDecodeError,
			Message:  msg,
			Err:      pkgerrors.Wrap(pkgerrors.CodeDecode, cause, "invalid message payload"),
		}
	}
}
