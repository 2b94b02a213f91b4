package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MCheckoutStages          MetricKey = "checkout_stage_total"
	MCartReplayLines         MetricKey = "cart_replay_lines_total"
	MCartSyncFailures        MetricKey = "cart_sync_failed_total"
)
