package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-amm/internal/events"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// Kind classifies an activity record.
type Kind string

const (
	KindSwap     Kind = "swap"
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

// Record is one committed pool transition.
type Record struct {
	Timestamp   time.Time        `json:"timestamp"`
	Kind        Kind             `json:"kind"`
	Pool        solana.PublicKey `json:"pool"`
	User        solana.PublicKey `json:"user"`
	InputMint   solana.PublicKey `json:"input_mint,omitempty"`
	AmountIn    uint64           `json:"amount_in,omitempty"`
	AmountOut   uint64           `json:"amount_out,omitempty"`
	Fee         uint64           `json:"fee,omitempty"`
	ProtocolFee uint64           `json:"protocol_fee,omitempty"`
	AmountA     uint64           `json:"amount_a,omitempty"`
	AmountB     uint64           `json:"amount_b,omitempty"`
	Shares      uint64           `json:"shares,omitempty"`
	ReserveA    uint64           `json:"reserve_a"`
	ReserveB    uint64           `json:"reserve_b"`
}

// CSVHeaders returns the column order used by Record.ToCSV.
func CSVHeaders() []string {
	return []string{
		"timestamp", "kind", "pool", "user", "input_mint",
		"amount_in", "amount_out", "fee", "protocol_fee",
		"amount_a", "amount_b", "shares", "reserve_a", "reserve_b",
	}
}

// ToCSV renders the record as a CSV row.
func (r Record) ToCSV() []string {
	input := ""
	if !r.InputMint.IsZero() {
		input = r.InputMint.String()
	}
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return []string{
		r.Timestamp.Format(time.RFC3339Nano), string(r.Kind), r.Pool.String(), r.User.String(), input,
		u(r.AmountIn), u(r.AmountOut), u(r.Fee), u(r.ProtocolFee),
		u(r.AmountA), u(r.AmountB), u(r.Shares), u(r.ReserveA), u(r.ReserveB),
	}
}

// FromEvent converts a pool event into a record. ok is false for events that
// carry no pool activity.
func FromEvent(ev events.Event) (Record, bool) {
	switch e := ev.(type) {
	case events.SwapEvent:
		return Record{
			Timestamp: e.Timestamp(), Kind: KindSwap, Pool: e.Pool, User: e.User,
			InputMint: e.InputMint, AmountIn: e.AmountIn, AmountOut: e.AmountOut,
			Fee: e.Fee, ProtocolFee: e.ProtocolFee, ReserveA: e.ReserveA, ReserveB: e.ReserveB,
		}, true
	case events.LiquidityAddedEvent:
		return Record{
			Timestamp: e.Timestamp(), Kind: KindDeposit, Pool: e.Pool, User: e.User,
			AmountA: e.AmountA, AmountB: e.AmountB, Shares: e.Minted,
			ReserveA: e.ReserveA, ReserveB: e.ReserveB,
		}, true
	case events.LiquidityRemovedEvent:
		return Record{
			Timestamp: e.Timestamp(), Kind: KindWithdraw, Pool: e.Pool, User: e.User,
			AmountA: e.AmountA, AmountB: e.AmountB, Shares: e.Burned,
			ReserveA: e.ReserveA, ReserveB: e.ReserveB,
		}, true
	default:
		return Record{}, false
	}
}

// Recorder accumulates records from the event bus.
type Recorder struct {
	mu      sync.Mutex
	records []Record
	subs    []events.Subscription
}

// NewRecorder subscribes to every pool activity event on bus.
func NewRecorder(bus *events.Bus) *Recorder {
	r := &Recorder{}
	for _, typ := range []events.EventType{events.Swapped, events.LiquidityAdded, events.LiquidityRemoved} {
		r.subs = append(r.subs, bus.Subscribe(typ, events.HandlerFunc(r.handle)))
	}
	return r
}

func (r *Recorder) handle(_ context.Context, ev events.Event) error {
	rec, ok := FromEvent(ev)
	if !ok {
		return nil
	}
	r.Add(rec)
	return nil
}

// Add appends a record.
func (r *Recorder) Add(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Close detaches the recorder from the bus.
func (r *Recorder) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format     ExportFormat
	StartTime  time.Time
	EndTime    time.Time
	PoolFilter solana.PublicKey // zero means every pool
	KindFilter Kind
	OutputDir  string
}

// Exporter writes activity records to disk.
type Exporter struct {
	logger *zap.Logger
}

// NewExporter creates a new exporter
func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{
		logger: logger.Named("export"),
	}
}

// Export writes the records matching options and returns the file path.
func (e *Exporter) Export(records []Record, options ExportOptions) (string, error) {
	filtered := e.filterRecords(records, options)

	if len(filtered) == 0 {
		return "", fmt.Errorf("no records match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	filename := e.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = e.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = e.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}

	if err != nil {
		return "", err
	}

	e.logger.Info("Pool activity exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (e *Exporter) filterRecords(records []Record, options ExportOptions) []Record {
	var filtered []Record

	for _, rec := range records {
		if !options.StartTime.IsZero() && rec.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && rec.Timestamp.After(options.EndTime) {
			continue
		}
		if !options.PoolFilter.IsZero() && !rec.Pool.Equals(options.PoolFilter) {
			continue
		}
		if options.KindFilter != "" && rec.Kind != options.KindFilter {
			continue
		}
		filtered = append(filtered, rec)
	}

	return filtered
}

func (e *Exporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "activity_all"
	if options.KindFilter != "" {
		prefix = fmt.Sprintf("activity_%s", options.KindFilter)
	}
	if !options.PoolFilter.IsZero() {
		prefix += "_" + options.PoolFilter.String()[:8]
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

func (e *Exporter) exportToCSV(records []Record, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write(rec.ToCSV()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (e *Exporter) exportToJSON(records []Record, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	exportData := struct {
		ExportTime  time.Time `json:"export_time"`
		RecordCount int       `json:"record_count"`
		Summary     Summary   `json:"summary"`
		Records     []Record  `json:"records"`
	}{
		ExportTime:  time.Now().UTC(),
		RecordCount: len(records),
		Summary:     Summarize(records),
		Records:     records,
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// Summary contains aggregate statistics over a set of records.
type Summary struct {
	TotalRecords  int                         `json:"total_records"`
	Swaps         int                         `json:"swaps"`
	Deposits      int                         `json:"deposits"`
	Withdrawals   int                         `json:"withdrawals"`
	UniquePools   int                         `json:"unique_pools"`
	UniqueUsers   int                         `json:"unique_users"`
	VolumeIn      map[string]uint64           `json:"volume_in"`
	FeesCollected uint64                      `json:"fees_collected"`
	ProtocolFees  uint64                      `json:"protocol_fees"`
	StartDate     time.Time                   `json:"start_date"`
	EndDate       time.Time                   `json:"end_date"`
}

// Summarize aggregates records. Records are expected in time order.
func Summarize(records []Record) Summary {
	summary := Summary{
		TotalRecords: len(records),
		VolumeIn:     make(map[string]uint64),
	}

	if len(records) == 0 {
		return summary
	}

	summary.StartDate = records[0].Timestamp
	summary.EndDate = records[len(records)-1].Timestamp

	pools := make(map[solana.PublicKey]struct{})
	users := make(map[solana.PublicKey]struct{})

	for _, rec := range records {
		pools[rec.Pool] = struct{}{}
		users[rec.User] = struct{}{}

		switch rec.Kind {
		case KindSwap:
			summary.Swaps++
			summary.VolumeIn[rec.InputMint.String()] += rec.AmountIn
			summary.FeesCollected += rec.Fee
			summary.ProtocolFees += rec.ProtocolFee
		case KindDeposit:
			summary.Deposits++
		case KindWithdraw:
			summary.Withdrawals++
		}
	}

	summary.UniquePools = len(pools)
	summary.UniqueUsers = len(users)

	return summary
}
