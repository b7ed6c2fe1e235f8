package entities

// ProviderType categorizes the care setting a provider belongs to.
type ProviderType string

const (
	ProviderTypePhysician  ProviderType = "physician"
	ProviderTypeHospital   ProviderType = "hospital"
	ProviderTypeImaging    ProviderType = "imaging"
	ProviderTypePT         ProviderType = "pt"
	ProviderTypeER         ProviderType = "er"
	ProviderTypePCP        ProviderType = "pcp"
	ProviderTypeSpecialist ProviderType = "specialist"
	ProviderTypeUnknown    ProviderType = "unknown"
)

// Provider is an upstream-normalized care provider used for display resolution.
type Provider struct {
	ProviderID      string       `json:"provider_id"`
	DetectedNameRaw string       `json:"detected_name_raw"`
	NormalizedName  string       `json:"normalized_name"`
	ProviderType    ProviderType `json:"provider_type"`
	Confidence      int          `json:"confidence"`
}
