package models

// ProviderSpec names a backend chat service with an optional model and
// credential. Empty fields are resolved through the dispatcher's precedence
// chain.
type ProviderSpec struct {
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	Credential string `json:"-"`
}
