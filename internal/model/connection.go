package model

import "fmt"

// ConnectionKind discriminates the ~10 connection variants. It is the Go
// analogue of the source's dynamically-dispatched "kind" tag: a registry
// (see connector.Register) maps each kind to a factory.
type ConnectionKind string

const (
	ConnLocal      ConnectionKind = "local"
	ConnS3         ConnectionKind = "s3"
	ConnGS         ConnectionKind = "gs"
	ConnParquet    ConnectionKind = "parquet"
	ConnJSON       ConnectionKind = "json"
	ConnCSV        ConnectionKind = "csv"
	ConnFile       ConnectionKind = "file"
	ConnVariable   ConnectionKind = "variable"
	ConnDeltatable ConnectionKind = "deltatable"
	ConnWarehouse  ConnectionKind = "warehouse"
	ConnRowDB      ConnectionKind = "rowdb"
	ConnREST       ConnectionKind = "rest"
	ConnLLMSQL     ConnectionKind = "llmsql"
	ConnCustom     ConnectionKind = "custom"
)

// DataMode governs how a table-format or warehouse sink treats an existing
// target.
type DataMode string

const (
	DataModeAppend    DataMode = "append"
	DataModeOverwrite DataMode = "overwrite"
	DataModeError     DataMode = "error"
)

// SchemaMode governs how column-set mismatches are handled on sink.
type SchemaMode string

const (
	SchemaModeNone      SchemaMode = ""
	SchemaModeMerge     SchemaMode = "merge"
	SchemaModeOverwrite SchemaMode = "overwrite"
)

// Connection is a tagged variant over the connection kinds of §3. Only the
// fields relevant to Kind are expected to be populated; Validate checks the
// fields each Kind requires but does not reject fields irrelevant to Kind.
type Connection struct {
	Kind       ConnectionKind `json:"kind" yaml:"kind"`
	Config     map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Params     map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Fields     Columns        `json:"fields,omitempty" yaml:"fields,omitempty"`
	ShowSchema bool           `json:"show_schema,omitempty" yaml:"show_schema,omitempty"`

	// Physical connections (local/s3/gs/parquet/json/csv/deltatable/variable).
	Locator     string `json:"locator,omitempty" yaml:"locator,omitempty"`
	RawDispatch bool   `json:"raw_dispatch,omitempty" yaml:"raw_dispatch,omitempty"`

	// Versioned connections (deltatable, warehouse, rowdb).
	Version string   `json:"version,omitempty" yaml:"version,omitempty"`
	Key     []string `json:"key,omitempty" yaml:"key,omitempty"`

	// Table-format connection.
	Partition      []string   `json:"partition,omitempty" yaml:"partition,omitempty"`
	DataMode       DataMode   `json:"data_mode,omitempty" yaml:"data_mode,omitempty"`
	SchemaMode     SchemaMode `json:"schema_mode,omitempty" yaml:"schema_mode,omitempty"`
	Optimize       string     `json:"optimize,omitempty" yaml:"optimize,omitempty"`
	WriterFeatures []string   `json:"writer_features,omitempty" yaml:"writer_features,omitempty"`

	// REST connection.
	Client  *RESTClient  `json:"client,omitempty" yaml:"client,omitempty"`
	Request *RESTRequest `json:"request,omitempty" yaml:"request,omitempty"`

	// Custom connection.
	Module    string `json:"module,omitempty" yaml:"module,omitempty"`
	Classname string `json:"classname,omitempty" yaml:"classname,omitempty"`

	// LLM SQL-generator connection.
	LLMVariables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Validate checks that the populated fields are consistent with Kind.
func (c *Connection) Validate() error {
	if c == nil {
		return fmt.Errorf("ankaflow: nil connection")
	}
	switch c.Kind {
	case ConnLocal, ConnS3, ConnGS, ConnParquet, ConnJSON, ConnCSV, ConnFile, ConnVariable:
		if c.Locator == "" && !c.RawDispatch {
			return fmt.Errorf("ankaflow: connection kind %q requires a locator", c.Kind)
		}
	case ConnDeltatable:
		if c.Locator == "" {
			return fmt.Errorf("ankaflow: deltatable connection requires a locator")
		}
		switch c.DataMode {
		case "", DataModeAppend, DataModeOverwrite, DataModeError:
		default:
			return fmt.Errorf("ankaflow: invalid data_mode %q", c.DataMode)
		}
		switch c.SchemaMode {
		case SchemaModeNone, SchemaModeMerge, SchemaModeOverwrite:
		default:
			return fmt.Errorf("ankaflow: invalid schema_mode %q", c.SchemaMode)
		}
	case ConnWarehouse:
		if c.Locator == "" {
			return fmt.Errorf("ankaflow: warehouse connection requires a locator")
		}
	case ConnRowDB:
		if c.Locator == "" {
			return fmt.Errorf("ankaflow: rowdb connection requires a locator")
		}
	case ConnREST:
		if c.Request == nil {
			return fmt.Errorf("ankaflow: rest connection requires a request block")
		}
	case ConnCustom:
		if c.Module == "" || c.Classname == "" {
			return fmt.Errorf("ankaflow: custom connection requires module and classname")
		}
	case ConnLLMSQL:
		// LLM config is inherited from ConnectionConfiguration; nothing stage-local is required.
	default:
		return fmt.Errorf("ankaflow: unknown connection kind %q", c.Kind)
	}
	return nil
}

// Versioned reports whether ranking should be applied: both a version
// column and at least one key column must be present.
func (c *Connection) Versioned() bool {
	return c != nil && c.Version != "" && len(c.Key) > 0
}
