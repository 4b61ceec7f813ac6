package model

// RESTAuthKind discriminates the auth variants of §4.J.
type RESTAuthKind string

const (
	AuthBasic  RESTAuthKind = "basic"
	AuthDigest RESTAuthKind = "digest"
	AuthHeader RESTAuthKind = "header"
	AuthOAuth2 RESTAuthKind = "oauth2"
)

// RESTAuth configures request authentication.
type RESTAuth struct {
	Kind     RESTAuthKind      `json:"kind" yaml:"kind"`
	Username string            `json:"username,omitempty" yaml:"username,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Token    string            `json:"token,omitempty" yaml:"token,omitempty"`
	TokenURL string            `json:"token_url,omitempty" yaml:"token_url,omitempty"`
	ClientID string            `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	Secret   string            `json:"client_secret,omitempty" yaml:"client_secret,omitempty"`
}

// RESTClient is the "client" subtree of a REST connection.
type RESTClient struct {
	BaseURL   string        `json:"base_url" yaml:"base_url"`
	Transport string        `json:"transport,omitempty" yaml:"transport,omitempty"`
	TimeoutMS int           `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Auth      *RESTAuth     `json:"auth,omitempty" yaml:"auth,omitempty"`
	Throttle  float64       `json:"throttle,omitempty" yaml:"throttle,omitempty"`
}

// RESTErrorHandler flags, as request errors, responses that the built-in
// status-code rules let through (status below 400).
type RESTErrorHandler struct {
	Condition       string `json:"condition,omitempty" yaml:"condition,omitempty"`
	ErrorStatusCode []int  `json:"error_status_codes,omitempty" yaml:"error_status_codes,omitempty"`
}

// RESTResponseKind discriminates the four response handlers.
type RESTResponseKind string

const (
	ResponseBasic       RESTResponseKind = "basic"
	ResponsePaginator   RESTResponseKind = "paginator"
	ResponseURLPolling  RESTResponseKind = "url_polling"
	ResponseStatePoll   RESTResponseKind = "state_polling"
)

// RESTResponse configures the response handler.
type RESTResponse struct {
	Kind RESTResponseKind `json:"kind" yaml:"kind"`

	// Shared.
	Locator string `json:"locator,omitempty" yaml:"locator,omitempty"`

	// Paginator.
	PageParam   string `json:"page_param,omitempty" yaml:"page_param,omitempty"`
	PageIn      string `json:"page_in,omitempty" yaml:"page_in,omitempty"` // "query" | "body"
	PageInitial int    `json:"page_initial,omitempty" yaml:"page_initial,omitempty"`
	Increment   int    `json:"increment,omitempty" yaml:"increment,omitempty"`
	PageSize    int    `json:"page_size,omitempty" yaml:"page_size,omitempty"`
	TotalRecord string `json:"total_records,omitempty" yaml:"total_records,omitempty"`

	// URL polling / state polling.
	ReadyStatus    string `json:"ready_status,omitempty" yaml:"ready_status,omitempty"`
	StatusLocator  string `json:"status_locator,omitempty" yaml:"status_locator,omitempty"`
	PollURLLocator string `json:"poll_url_locator,omitempty" yaml:"poll_url_locator,omitempty"`
	PollEndpoint   string `json:"poll_endpoint,omitempty" yaml:"poll_endpoint,omitempty"`
	PollIntervalMS int    `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty"`
	MaxPolls       int    `json:"max_polls,omitempty" yaml:"max_polls,omitempty"`
}

// RESTRequest is the "request" subtree of a REST connection.
type RESTRequest struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Method         string            `json:"method,omitempty" yaml:"method,omitempty"`
	ContentType    string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Query          map[string]any    `json:"query,omitempty" yaml:"query,omitempty"`
	Body           map[string]any    `json:"body,omitempty" yaml:"body,omitempty"`
	Headers        map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	ErrorHandler   *RESTErrorHandler `json:"errorhandler,omitempty" yaml:"errorhandler,omitempty"`
	Response       *RESTResponse     `json:"response,omitempty" yaml:"response,omitempty"`
	MaxRetries     int               `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	InitialBackoff float64           `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`
}
