package result

// TrialRecord is one evaluation of one equation in one epoch.
type TrialRecord struct {
	ID            string   `json:"id"`
	Epoch         int      `json:"epoch"`
	Equation      string   `json:"equation"`
	Answer        float64  `json:"answer"`
	Type          string   `json:"type"`
	Complexity    float64  `json:"complexity"`
	Method        string   `json:"method"`
	Output        *float64 `json:"output"`
	Correct       int      `json:"correct"`
	LatencyMS     float64  `json:"latency_ms"`
	CPUTimeMS     float64  `json:"cpu_time_ms"`
	RAMPeakMB     float64  `json:"ram_peak_mb"`
	RequestBytes  int      `json:"request_bytes"`
	ResponseBytes int      `json:"response_bytes"`
	RemoteCalls   int      `json:"remote_calls"`
	// Retries, Status and Fault describe the evaluation's dispatches. They
	// are logged and kept in the JSON mirror but are not summary columns.
	Retries int `json:"retries"`
	Status  int `json:"status"`
	Fault   int `json:"fault"`
}

// AggregateRecord summarizes all epochs of one equation.
type AggregateRecord struct {
	ID         string   `json:"id"`
	Equation   string   `json:"equation"`
	Answer     float64  `json:"answer"`
	Type       string   `json:"type"`
	Complexity float64  `json:"complexity"`
	Method     string   `json:"method"`
	Output     *float64 `json:"output"`
	Epochs     int      `json:"epochs"`
	// SuccessRate is the mean of Correct over epochs, in [0,1].
	SuccessRate   float64 `json:"success_rate"`
	LatencyMeanMS float64 `json:"latency_mean_ms"`
	LatencyStdMS  float64 `json:"latency_std_ms"`
	LatencyP95MS  float64 `json:"latency_p95_ms"`
	LatencyP99MS  float64 `json:"latency_p99_ms"`
	CPUTimeMeanMS float64 `json:"cpu_time_mean_ms"`
	CPUTimeStdMS  float64 `json:"cpu_time_std_ms"`
	CPUTimePeakMS float64 `json:"cpu_time_peak_ms"`
	RAMPeakMaxMB  float64 `json:"ram_peak_max_mb"`
	// Taken from the first epoch; assumed not to vary.
	RequestBytes  int `json:"request_bytes"`
	ResponseBytes int `json:"response_bytes"`
	RemoteCalls   int `json:"remote_calls"`
}

// RunMeta describes one benchmark run.
type RunMeta struct {
	RunID        string  `json:"run_id"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   string  `json:"finished_at"`
	Dataset      string  `json:"dataset"`
	Rows         int     `json:"rows"`
	Epochs       int     `json:"epochs"`
	Method       string  `json:"method"`
	Endpoint     string  `json:"endpoint"`
	Tolerance    float64 `json:"tolerance"`
	MaxRetries   int     `json:"max_retries"`
	Accuracy     float64 `json:"accuracy"`
	MeanLatency  float64 `json:"mean_latency_ms"`
	Trials       int     `json:"trials"`
	RescoredFrom float64 `json:"rescored_from,omitempty"`
}
