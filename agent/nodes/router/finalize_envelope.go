package routernode

import (
	"fmt"

	contractx "github.com/tanpawarit/Plant-Conversational-Hub/agent/contract"
)

// FinalizeEnvelope closes the graph: by this point every path has decided
// an outcome, so a missing envelope is a pipeline bug.
func FinalizeEnvelope(in *GraphState) (contractx.ResponseEnvelope, error) {
	if in == nil || in.Envelope == nil {
		return contractx.ResponseEnvelope{}, fmt.Errorf("%w: routing finished without an outcome", contractx.ErrValidation)
	}
	return *in.Envelope, nil
}
