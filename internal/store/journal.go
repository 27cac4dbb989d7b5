package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/quantdesk/template-backend/pkg/types"
	"github.com/tidwall/buntdb"
)

// AddTrade journals one executed trade.
func (s *Store) AddTrade(ctx context.Context, trade *types.JournalTrade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}

	content, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, setErr := tx.Set(journalPrefix+trade.ID, string(content), nil)
		return setErr
	})
	if err != nil {
		return fmt.Errorf("failed to store trade: %w", err)
	}
	return nil
}

// ListTrades returns all journaled trades in exit-time order.
func (s *Store) ListTrades(ctx context.Context) ([]types.JournalTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var trades []types.JournalTrade
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(journalPrefix+"*", func(key, value string) bool {
			var trade types.JournalTrade
			if json.Unmarshal([]byte(value), &trade) == nil {
				trades = append(trades, trade)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].ExitAt.Before(trades[j].ExitAt)
	})
	return trades, nil
}
