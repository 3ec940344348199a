package streammagic

import "encoding/json"

// Control protocol paths.
const (
	pathSystemInfo = "/system/info"
	pathUserEQ     = "/zone/user_eq"
)

const resultOK = 200

// request is the envelope sent to the device.
type request struct {
	Path   string `json:"path"`
	Params any    `json:"params,omitempty"`
}

// response is the envelope the device answers with. Result mirrors HTTP status
// semantics: 200 is success, anything else carries a Message explaining the
// rejection. Params.Data holds the path-specific payload.
type response struct {
	Path    string `json:"path"`
	Result  int    `json:"result"`
	Message string `json:"message,omitempty"`
	Params  struct {
		Data json.RawMessage `json:"data,omitempty"`
	} `json:"params"`
}

// Info is the device identity reported by /system/info.
type Info struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	UnitID     string `json:"unit_id"`
	APIVersion string `json:"api_version"`
}
