package checkpoint

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cchalm/memochat/internal/ai"
)

// encMode produces deterministic CBOR, so saving the same state twice writes identical bytes
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("checkpoint: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("checkpoint: CBOR decoder initialization failed: " + err.Error())
	}
}

// encodeState serializes a state for a checkpoint row. Field names come from the json struct tags.
func encodeState(state ai.ConversationState) ([]byte, error) {
	b, err := encMode.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation state: %w", err)
	}
	return b, nil
}

func decodeState(b []byte) (ai.ConversationState, error) {
	var state ai.ConversationState
	if err := decMode.Unmarshal(b, &state); err != nil {
		return ai.ConversationState{}, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return state, nil
}
