package model

// LocalConfig configures the local/object-store "bucket" that the Locator
// resolves relative paths against.
type LocalConfig struct {
	Bucket     string `json:"bucket" yaml:"bucket"`
	DataPrefix string `json:"data_prefix,omitempty" yaml:"data_prefix,omitempty"`
}

// S3Config carries AWS credentials scoped to one bucket.
type S3Config struct {
	Bucket          string `json:"bucket" yaml:"bucket"`
	DataPrefix      string `json:"data_prefix,omitempty" yaml:"data_prefix,omitempty"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	UnsafeRename    bool   `json:"unsafe_rename_enable,omitempty" yaml:"unsafe_rename_enable,omitempty"`
}

// GSConfig carries GCS credentials scoped to one bucket.
type GSConfig struct {
	Bucket             string `json:"bucket" yaml:"bucket"`
	DataPrefix         string `json:"data_prefix,omitempty" yaml:"data_prefix,omitempty"`
	Region             string `json:"region,omitempty" yaml:"region,omitempty"`
	ServiceAccountJSON string `json:"service_account_json,omitempty" yaml:"service_account_json,omitempty"`
	ServiceAccountPath string `json:"service_account_path,omitempty" yaml:"service_account_path,omitempty"`
}

// WarehouseConfig configures the query-only/batch-load warehouse target.
type WarehouseConfig struct {
	Project         string `json:"project" yaml:"project"`
	Dataset         string `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Region          string `json:"region,omitempty" yaml:"region,omitempty"`
	CredentialsJSON string `json:"credentials_json,omitempty" yaml:"credentials_json,omitempty"`
	CredentialsPath string `json:"credentials_path,omitempty" yaml:"credentials_path,omitempty"`
}

// RowDBConfig configures the streaming row-oriented database.
type RowDBConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	Secure   bool   `json:"secure,omitempty" yaml:"secure,omitempty"`
}

// LLMConfig configures the default LLM provider used by the SQL generator
// connection unless overridden per-stage.
type LLMConfig struct {
	Protocol    string  `json:"protocol,omitempty" yaml:"protocol,omitempty"` // "openai" | "proxy" | "mock"
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxRetries  int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// ConnectionConfiguration is the per-provider credential bundle built once
// at run start. A stage's Connection.Config may patch selected fields (see
// render.ApplyConfigPatch).
type ConnectionConfiguration struct {
	Local     *LocalConfig     `json:"local,omitempty" yaml:"local,omitempty"`
	S3        *S3Config        `json:"s3,omitempty" yaml:"s3,omitempty"`
	GS        *GSConfig        `json:"gs,omitempty" yaml:"gs,omitempty"`
	Warehouse *WarehouseConfig `json:"warehouse,omitempty" yaml:"warehouse,omitempty"`
	RowDB     *RowDBConfig     `json:"rowdb,omitempty" yaml:"rowdb,omitempty"`
	LLM       *LLMConfig       `json:"llm,omitempty" yaml:"llm,omitempty"`
}
