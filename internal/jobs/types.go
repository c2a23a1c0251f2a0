package jobs

const (
	// TaskArchiveRun triggers one batch run. Scheduled periodically and
	// consumed at concurrency 1 so runs never overlap.
	TaskArchiveRun = "archive:run"
)

type ArchiveRunPayload struct {
	// Scheduled distinguishes cron-fired runs from manually enqueued ones
	// in the logs.
	Scheduled bool `json:"scheduled"`
}
