package crm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_Amount(t *testing.T) {
	t.Run("prefers the primary amount column", func(t *testing.T) {
		row := Row{KeyAmount: "1500", "Кредит": "9999"}

		amount, ok := row.Amount()
		require.True(t, ok)
		assert.True(t, amount.Equal(decimal.NewFromInt(1500)))
	})

	t.Run("falls back through the alias order", func(t *testing.T) {
		row := Row{KeyAmount: "", "Сумма операции": nil, "Кредит": "250.50"}

		amount, ok := row.Amount()
		require.True(t, ok)
		assert.Equal(t, "250.5", amount.String())
	})

	t.Run("accepts comma decimal separators", func(t *testing.T) {
		row := Row{KeyAmount: "1 000,75"}

		amount, ok := row.Amount()
		require.True(t, ok)
		assert.Equal(t, "1000.75", amount.String())
	})

	t.Run("accepts numeric cell values", func(t *testing.T) {
		row := Row{KeyAmount: 2500.0}

		amount, ok := row.Amount()
		require.True(t, ok)
		assert.True(t, amount.Equal(decimal.NewFromInt(2500)))
	})

	t.Run("reports unparseable amounts", func(t *testing.T) {
		row := Row{KeyAmount: "не сумма"}

		_, ok := row.Amount()
		assert.False(t, ok)
	})
}

func TestRow_Date(t *testing.T) {
	t.Run("reads day-first dates", func(t *testing.T) {
		row := Row{KeyDate: "14.02.2025"}

		d, err := row.Date()
		require.NoError(t, err)
		assert.Equal(t, "2025-02-14", d.Format("2006-01-02"))
	})

	t.Run("falls back to secondary date columns", func(t *testing.T) {
		row := Row{"Дата платежа": "2025-03-01"}

		d, err := row.Date()
		require.NoError(t, err)
		assert.Equal(t, "2025-03-01", d.Format("2006-01-02"))
	})
}

func TestRow_MarshalJSON_Ordering(t *testing.T) {
	row := Row{
		"б поле":    "",
		"а поле":    nil,
		KeyFullName: "Иванов Иван",
		KeyAmount:   "100",
		KeySource:   "kaspi",
		KeyID:       int64(7),
	}

	raw, err := json.Marshal(row)
	require.NoError(t, err)

	// Non-empty fields sorted, then empty ones, then источник and id.
	assert.JSONEq(t, `{"Сумма":"100","ФИО":"Иванов Иван","а поле":null,"б поле":"","источник":"kaspi","id":7}`, string(raw))

	var order []string
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	_, err = dec.Token()
	require.NoError(t, err)
	for dec.More() {
		tok, err := dec.Token()
		require.NoError(t, err)
		if key, ok := tok.(string); ok {
			order = append(order, key)
			var discard any
			require.NoError(t, dec.Decode(&discard))
		}
	}
	assert.Equal(t, []string{"Сумма", "ФИО", "а поле", "б поле", KeySource, KeyID}, order)
}

func TestEntry_Payload(t *testing.T) {
	e := Entry{
		ID:     3,
		Source: "halyk",
		Data:   Row{KeyDate: "05.06.2025", KeyFullName: "Петрова Анна"},
	}

	row := e.Payload()
	assert.Equal(t, int64(3), row[KeyID])
	assert.Equal(t, "halyk", row[KeySource])
	assert.Equal(t, "Июнь", row[KeyMonth])

	// The stored data is left untouched.
	_, ok := e.Data[KeyID]
	assert.False(t, ok)
}
