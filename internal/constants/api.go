package constants

// Elasticsearch API endpoints
const (
	EndpointElasticSearch  = "/%s/_search"
	EndpointElasticMSearch = "/%s/_msearch"
	EndpointElasticMapping = "/%s/_mapping"
	EndpointCatIndices     = "/_cat/indices"
)

// Splunk REST API endpoints
const (
	EndpointSplunkJobs        = "/services/search/jobs"
	EndpointSplunkJob         = "/services/search/jobs/%s"
	EndpointSplunkJobResults  = "/services/search/jobs/%s/results"
	EndpointSplunkDataIndexes = "/services/data/indexes"
)

// HTTP Headers
const (
	HeaderAccept          = "Accept"
	HeaderAuthorization   = "Authorization"
	HeaderContentType     = "Content-Type"
	HeaderUserAgent       = "User-Agent"
	HeaderContentTypeJSON = "application/json"
	HeaderContentNDJSON   = "application/x-ndjson"
	HeaderContentForm     = "application/x-www-form-urlencoded"
)

// Result file tags
const (
	TagElastic = "elk_log"
	TagSplunk  = "log"
)

const UserAgent = "siem-mcp"
