// Package dynamo implements storage.StatusStore on DynamoDB as a
// wide-column alternative to the postgres backend. Grounded on the AWS SDK
// v2 client-construction idiom from the r2client example
// (config.LoadDefaultConfig + credentials.NewStaticCredentialsProvider),
// extended from S3 to the dynamodb service within the same SDK family.
//
// This backend only ever keeps the latest status per mountain: DynamoDB's
// natural access pattern here is a single item keyed by mountain_id, and
// full scraped_at history would need a second GSI-backed table this
// exercise doesn't build. GetHistory returns at most that one latest
// status. See the design ledger for the accepted parity gap with postgres.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/ridgeline-labs/slope-scraper/internal/models"
	"github.com/ridgeline-labs/slope-scraper/internal/storage"
)

// Config describes how to reach a DynamoDB table and (for local testing)
// an alternate endpoint such as DynamoDB Local.
type Config struct {
	Region          string
	Endpoint        string // optional override, e.g. http://localhost:8000
	AccessKeyID     string
	SecretAccessKey string
	StatusTable     string
	RunTable        string
	FailureTable    string
}

// Store is a DynamoDB-backed storage.StatusStore.
type Store struct {
	client       *dynamodb.Client
	statusTable  string
	runTable     string
	failureTable string
}

// New builds a Store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "load aws config", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &Store{
		client:       client,
		statusTable:  cfg.StatusTable,
		runTable:     cfg.RunTable,
		failureTable: cfg.FailureTable,
	}, nil
}

// statusItem is the DynamoDB attribute-value shape for one latest status.
type statusItem struct {
	MountainID  string `dynamodbav:"mountain_id"`
	IsOpen      bool   `dynamodbav:"is_open"`
	PercentOpen *int   `dynamodbav:"percent_open,omitempty"`
	LiftsOpen   int    `dynamodbav:"lifts_open"`
	LiftsTotal  int    `dynamodbav:"lifts_total"`
	RunsOpen    int    `dynamodbav:"runs_open"`
	RunsTotal   int    `dynamodbav:"runs_total"`
	AcresOpen   *int   `dynamodbav:"acres_open,omitempty"`
	AcresTotal  *int   `dynamodbav:"acres_total,omitempty"`
	Message     string `dynamodbav:"message,omitempty"`
	SourceURL   string `dynamodbav:"source_url"`
	DataURL     string `dynamodbav:"data_url"`
	ScrapedAt   string `dynamodbav:"scraped_at"` // fixed-width UTC RFC3339 with nanoseconds, so Save's string comparison is chronological
}

func itemFromStatus(s models.ScrapedStatus) statusItem {
	return statusItem{
		MountainID:  s.MountainID,
		IsOpen:      s.IsOpen,
		PercentOpen: s.PercentOpen,
		LiftsOpen:   s.LiftsOpen,
		LiftsTotal:  s.LiftsTotal,
		RunsOpen:    s.RunsOpen,
		RunsTotal:   s.RunsTotal,
		AcresOpen:   s.AcresOpen,
		AcresTotal:  s.AcresTotal,
		Message:     s.Message,
		SourceURL:   s.SourceURL,
		DataURL:     s.DataURL,
		ScrapedAt:   s.ScrapedAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"),
	}
}

func (i statusItem) toDomain() (models.ScrapedStatus, error) {
	scrapedAt, err := time.Parse(time.RFC3339Nano, i.ScrapedAt)
	if err != nil {
		return models.ScrapedStatus{}, fmt.Errorf("dynamo: parse scraped_at %q: %w", i.ScrapedAt, err)
	}
	return models.ScrapedStatus{
		MountainID:  i.MountainID,
		IsOpen:      i.IsOpen,
		PercentOpen: i.PercentOpen,
		LiftsOpen:   i.LiftsOpen,
		LiftsTotal:  i.LiftsTotal,
		RunsOpen:    i.RunsOpen,
		RunsTotal:   i.RunsTotal,
		AcresOpen:   i.AcresOpen,
		AcresTotal:  i.AcresTotal,
		Message:     i.Message,
		SourceURL:   i.SourceURL,
		DataURL:     i.DataURL,
		ScrapedAt:   scrapedAt,
	}, nil
}

// Save overwrites the latest-status item for status.MountainID unless an
// existing item already carries the same or a newer scraped_at, which keeps
// Save idempotent/monotonic the way the relational backend's primary key
// does (spec §4.7: duplicate or out-of-order writes are a no-op, not an
// error).
func (s *Store) Save(ctx context.Context, status models.ScrapedStatus) error {
	item, err := attributevalue.MarshalMap(itemFromStatus(status))
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "marshal status item", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.statusTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(mountain_id) OR scraped_at < :new_scraped_at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new_scraped_at": &types.AttributeValueMemberS{Value: item["scraped_at"].(*types.AttributeValueMemberS).Value},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			log.Printf("[INFO] dynamo: status for %s at %s is not newer than the stored item, ignored", status.MountainID, item["scraped_at"].(*types.AttributeValueMemberS).Value)
			return nil
		}
		return models.NewScrapeError(models.ErrStorageFailure, fmt.Sprintf("save status for %s", status.MountainID), err)
	}
	return nil
}

func (s *Store) SaveMany(ctx context.Context, statuses []models.ScrapedStatus) error {
	for _, status := range statuses {
		if err := s.Save(ctx, status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetLatest(ctx context.Context, mountainID string) (models.ScrapedStatus, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.statusTable),
		Key: map[string]types.AttributeValue{
			"mountain_id": &types.AttributeValueMemberS{Value: mountainID},
		},
	})
	if err != nil {
		return models.ScrapedStatus{}, false, models.NewScrapeError(models.ErrStorageFailure, "get latest status", err)
	}
	if out.Item == nil {
		return models.ScrapedStatus{}, false, nil
	}

	var item statusItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return models.ScrapedStatus{}, false, models.NewScrapeError(models.ErrStorageFailure, "unmarshal status item", err)
	}
	status, err := item.toDomain()
	if err != nil {
		return models.ScrapedStatus{}, false, models.NewScrapeError(models.ErrStorageFailure, "decode status item", err)
	}
	return status, true, nil
}

func (s *Store) GetAllLatest(ctx context.Context) ([]models.ScrapedStatus, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(s.statusTable)})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "scan latest statuses", err)
	}

	var items []statusItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "unmarshal scanned statuses", err)
	}

	results := make([]models.ScrapedStatus, 0, len(items))
	for _, item := range items {
		status, err := item.toDomain()
		if err != nil {
			return nil, models.NewScrapeError(models.ErrStorageFailure, "decode scanned status", err)
		}
		results = append(results, status)
	}
	return results, nil
}

// GetHistory only ever has the single latest status to offer (see package
// doc); it returns a one-element slice when that status falls within the
// requested window, matching the interface's "newest first" contract
// trivially.
func (s *Store) GetHistory(ctx context.Context, mountainID string, since time.Time) ([]models.ScrapedStatus, error) {
	status, ok, err := s.GetLatest(ctx, mountainID)
	if err != nil || !ok || status.ScrapedAt.Before(since) {
		return nil, err
	}
	return []models.ScrapedStatus{status}, nil
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	statuses, err := s.GetAllLatest(ctx)
	if err != nil {
		return storage.Stats{}, err
	}
	stats := storage.Stats{TotalRecords: len(statuses), MountainCount: len(statuses)}
	for _, status := range statuses {
		if stats.OldestRecordAt.IsZero() || status.ScrapedAt.Before(stats.OldestRecordAt) {
			stats.OldestRecordAt = status.ScrapedAt
		}
		if status.ScrapedAt.After(stats.NewestRecordAt) {
			stats.NewestRecordAt = status.ScrapedAt
		}
	}

	runs, err := s.scanRecentRuns(ctx)
	if err != nil {
		return storage.Stats{}, err
	}
	var lastStarted time.Time
	var sumSuccess, sumFail, sumDuration float64
	cutoff := time.Now().UTC().Add(-storage.RecentRunsWindow)
	for _, run := range runs {
		startedAt, err := time.Parse(time.RFC3339Nano, run.StartedAt)
		if err != nil {
			continue
		}
		if startedAt.After(lastStarted) {
			lastStarted = startedAt
			stats.LastRunID = run.RunID
			stats.LastRunStatus = run.Status
		}
		if startedAt.Before(cutoff) {
			continue
		}
		stats.RecentRuns.Count++
		sumSuccess += float64(run.SuccessfulCount)
		sumFail += float64(run.FailedCount)
		sumDuration += float64(run.DurationMS)
	}
	if stats.RecentRuns.Count > 0 {
		n := float64(stats.RecentRuns.Count)
		stats.RecentRuns.AvgSuccess = sumSuccess / n
		stats.RecentRuns.AvgFail = sumFail / n
		stats.RecentRuns.AvgDurationMS = sumDuration / n
	}
	return stats, nil
}

// scanRecentRuns reads every item out of runTable. The run_records table is
// small relative to scraped_statuses (one item per orchestrated pass, not
// per mountain), so a full scan is acceptable for the stats rollup the same
// way GetAllLatest scans statusTable.
func (s *Store) scanRecentRuns(ctx context.Context) ([]runItem, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(s.runTable)})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "scan run records", err)
	}
	var runs []runItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &runs); err != nil {
		return nil, models.NewScrapeError(models.ErrStorageFailure, "unmarshal run records", err)
	}
	return runs, nil
}

// Cleanup is a no-op for this backend: only the latest item per mountain is
// ever kept, so there is no aged history to prune.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	return 0, nil
}

func (s *Store) StartRun(ctx context.Context, triggeredBy string, totalMountains int) (string, error) {
	runID := uuid.New().String()
	item, err := attributevalue.MarshalMap(runItem{
		RunID:          runID,
		TriggeredBy:    triggeredBy,
		TotalMountains: totalMountains,
		Status:         string(models.RunRunning),
		StartedAt:      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", models.NewScrapeError(models.ErrStorageFailure, "marshal run item", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.runTable), Item: item})
	if err != nil {
		return "", models.NewScrapeError(models.ErrStorageFailure, "start run", err)
	}
	return runID, nil
}

type runItem struct {
	RunID           string `dynamodbav:"run_id"`
	TriggeredBy     string `dynamodbav:"triggered_by"`
	TotalMountains  int    `dynamodbav:"total_mountains"`
	SuccessfulCount int    `dynamodbav:"successful_count"`
	FailedCount     int    `dynamodbav:"failed_count"`
	DurationMS      int64  `dynamodbav:"duration_ms"`
	Status          string `dynamodbav:"status"`
	StartedAt       string `dynamodbav:"started_at"`
	CompletedAt     string `dynamodbav:"completed_at,omitempty"`
	ErrorMessage    string `dynamodbav:"error_message,omitempty"`
}

func (s *Store) CompleteRun(ctx context.Context, runID string, successful, failed int, durationMS int64) error {
	return s.updateRun(ctx, runID, models.RunCompleted, successful, failed, durationMS, "")
}

func (s *Store) FailRun(ctx context.Context, runID string, errMessage string, durationMS int64) error {
	return s.updateRun(ctx, runID, models.RunFailed, 0, 0, durationMS, errMessage)
}

func (s *Store) updateRun(ctx context.Context, runID string, status models.RunStatus, successful, failed int, durationMS int64, errMessage string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.runTable),
		Key: map[string]types.AttributeValue{
			"run_id": &types.AttributeValueMemberS{Value: runID},
		},
		UpdateExpression: aws.String("SET #status = :status, successful_count = :ok, failed_count = :failed, duration_ms = :dur, completed_at = :done, error_message = :err"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":ok":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", successful)},
			":failed": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", failed)},
			":dur":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", durationMS)},
			":done":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
			":err":    &types.AttributeValueMemberS{Value: errMessage},
		},
	})
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "update run", err)
	}
	return nil
}

// SaveFailure writes a failure audit row into its own table, keyed by a
// synthetic failure_id (run_id#mountain_id#failed_at) so concurrent
// failures within one run never collide with each other or, critically,
// with the run_records item StartRun/updateRun keeps under the bare
// run_id key in runTable.
func (s *Store) SaveFailure(ctx context.Context, failure models.FailureRecord) error {
	failedAt := failure.FailedAt.UTC().Format(time.RFC3339Nano)
	item, err := attributevalue.MarshalMap(struct {
		FailureID    string `dynamodbav:"failure_id"`
		RunID        string `dynamodbav:"run_id"`
		MountainID   string `dynamodbav:"mountain_id"`
		ErrorMessage string `dynamodbav:"error_message"`
		SourceURL    string `dynamodbav:"source_url"`
		FailedAt     string `dynamodbav:"failed_at"`
	}{
		FailureID:    fmt.Sprintf("%s#%s#%s", failure.RunID, failure.MountainID, failedAt),
		RunID:        failure.RunID,
		MountainID:   failure.MountainID,
		ErrorMessage: failure.ErrorMessage,
		SourceURL:    failure.SourceURL,
		FailedAt:     failedAt,
	})
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "marshal failure item", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.failureTable), Item: item})
	if err != nil {
		return models.NewScrapeError(models.ErrStorageFailure, "save failure record", err)
	}
	return nil
}

var _ storage.StatusStore = (*Store)(nil)
