package txlog

import (
	"encoding/json"
	"sort"

	"mcw/internal/model"
	"mcw/internal/vault"
)

// maxRecords bounds local log growth. Oldest entries are dropped
// silently on append; the authoritative record remains on-chain.
const maxRecords = 100

// Store is the slice of the vault the log needs.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Log is the append-only local record of user-initiated actions. It
// supplies the semantic type and counterparty the chain cannot know;
// settlement facts always come from the chain at merge time.
type Log struct {
	store Store
}

// New creates a Log over store.
func New(store Store) *Log {
	return &Log{store: store}
}

// List returns the logged records, newest first.
func (l *Log) List() ([]model.Record, error) {
	raw, ok, err := l.store.Get(vault.KeyTxHistory)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []model.Record{}, nil
	}

	var records []model.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, &model.PersistenceError{Op: "decode history", Err: err}
	}
	sortNewestFirst(records)
	return records, nil
}

// Append adds a record and trims to the retention cap.
func (l *Log) Append(record model.Record) error {
	records, err := l.List()
	if err != nil {
		return err
	}

	records = append([]model.Record{record}, records...)
	sortNewestFirst(records)
	if len(records) > maxRecords {
		records = records[:maxRecords]
	}

	data, err := json.Marshal(records)
	if err != nil {
		return &model.PersistenceError{Op: "encode history", Err: err}
	}
	return l.store.Set(vault.KeyTxHistory, string(data))
}

// Update replaces the first record matching match; used to settle a
// pending record once its signature and outcome are known.
func (l *Log) Update(match func(model.Record) bool, apply func(*model.Record)) error {
	records, err := l.List()
	if err != nil {
		return err
	}
	for i := range records {
		if match(records[i]) {
			apply(&records[i])
			break
		}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return &model.PersistenceError{Op: "encode history", Err: err}
	}
	return l.store.Set(vault.KeyTxHistory, string(data))
}

func sortNewestFirst(records []model.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

// Merge unifies on-chain history with local records, keyed by
// signature. For a signature present in both, chain fields win for
// status/fee/blockTime and local fields win for type/counterparty/
// amount. Chain-only entries surface as receive/send facts without
// semantics; local-only entries (pending, or expired before landing)
// pass through as-is. Newest first, by local timestamp where present,
// else block time.
func Merge(onChain []model.ChainEntry, local []model.Record) []model.HistoryItem {
	bySignature := make(map[string]model.Record, len(local))
	for _, rec := range local {
		if rec.Signature != "" {
			bySignature[rec.Signature] = rec
		}
	}

	items := make([]model.HistoryItem, 0, len(onChain)+len(local))
	seen := make(map[string]bool, len(onChain))

	for _, entry := range onChain {
		seen[entry.Signature] = true

		item := model.HistoryItem{
			Signature: entry.Signature,
			FeeSOL:    entry.FeeSOL,
			Status:    model.StatusCompleted,
		}
		if entry.Failed {
			item.Status = model.StatusFailed
		}
		if entry.BlockTime != nil {
			item.Timestamp = *entry.BlockTime
		}

		if rec, ok := bySignature[entry.Signature]; ok {
			// local log knows what this was
			item.Type = rec.Type
			item.From = rec.From
			item.To = rec.To
			item.Amount = rec.Amount
			item.Currency = rec.Currency
			if item.Timestamp.IsZero() {
				item.Timestamp = rec.Timestamp
			}
		} else {
			// settled on-chain but never logged locally: an inbound
			// transfer or an action from another device
			item.Type = model.ActionReceive
		}
		items = append(items, item)
	}

	for _, rec := range local {
		if rec.Signature != "" && seen[rec.Signature] {
			continue
		}
		items = append(items, model.HistoryItem{
			Type:      rec.Type,
			From:      rec.From,
			To:        rec.To,
			Amount:    rec.Amount,
			Currency:  rec.Currency,
			Signature: rec.Signature,
			Timestamp: rec.Timestamp,
			Status:    rec.Status,
			Error:     rec.Error,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	return items
}
