package decoder

import "context"

// Processor interprets reconstructed packets into semantic annotations.
// Configuration is dependent on the specific implementation; see the TMC
// code for how a processor pairs with its decoder.
type Processor interface {
	Start(context.Context) error
}
