package permission

// Kind says whether a permission allows or denies a transaction type.
type Kind uint8

const (
	// Allow permits the transaction type.
	Allow Kind = iota

	// Deny forbids the transaction type.
	Deny
)

// String returns "allow" or "deny".
func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// IsValid returns true if the kind is a defined value.
func (k Kind) IsValid() bool {
	return k == Allow || k == Deny
}

// Allowed returns true for Allow.
func (k Kind) Allowed() bool {
	return k == Allow
}
