package action

// Failure codes carried on ActionResult and the HTTP error envelope.
// Stable strings: bots switch on them.
const (
	CodeBadRequest   = "E_BAD_REQUEST"   // Missing or malformed field.
	CodeNotFound     = "E_NOT_FOUND"     // Unknown agent, location, or recipe.
	CodeNoFunds      = "E_NO_FUNDS"      // Ledger balance too low.
	CodeNoResource   = "E_NO_RESOURCE"   // Missing inventory or depleted pool.
	CodeNotConnected = "E_NOT_CONNECTED" // Locations share no edge.
	CodeCapacity     = "E_CAPACITY"      // Target location is full.
	CodeWrongState   = "E_WRONG_STATE"   // Action not allowed here or now.
	CodeNoSession    = "E_NO_SESSION"    // Missing, unknown, or expired token.
	CodeInternal     = "E_INTERNAL"
)
