package catalog

// Permission represents an atomic capability in the catalog. The dotted
// Name ("module.action") is its immutable identity.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Module      string `json:"module"`
	Action      string `json:"action"`
}
