package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "иванов иван", Normalize("  Иванов   Иван \t"))
	assert.Equal(t, "", Normalize("   "))
}

func TestExtractIdentity(t *testing.T) {
	t.Run("splits name and national id", func(t *testing.T) {
		name, id := ExtractIdentity("Иванов Иван Иванович\nИИН: 880101300123\nБИК: ABCDEF")
		assert.Equal(t, "Иванов Иван Иванович", name)
		assert.Equal(t, "880101300123", id)
	})

	t.Run("accepts the organization id label", func(t *testing.T) {
		_, id := ExtractIdentity("ТОО Ромашка\nБИН:990240001234")
		assert.Equal(t, "990240001234", id)
	})

	t.Run("tolerates missing id", func(t *testing.T) {
		name, id := ExtractIdentity("Петрова Анна")
		assert.Equal(t, "Петрова Анна", name)
		assert.Equal(t, "", id)
	})

	t.Run("empty sender", func(t *testing.T) {
		name, id := ExtractIdentity("")
		assert.Equal(t, "", name)
		assert.Equal(t, "", id)
	})
}

func TestIsNationalID(t *testing.T) {
	assert.True(t, IsNationalID("880101300123"))
	assert.True(t, IsNationalID("9902400012"))
	assert.False(t, IsNationalID("88010130"))
	assert.False(t, IsNationalID("88010130012a"))
	assert.False(t, IsNationalID(""))
}

func TestMatch(t *testing.T) {
	row := Row{
		KeyFullName: "Иванов Иван Иванович",
		KeyIIN:      "880101300123",
		KeyContact:  "ivanov@example.kz",
		KeySender:   "Иванов Иван Иванович\nИИН: 880101300123",
	}

	t.Run("partial name matches both directions", func(t *testing.T) {
		assert.True(t, Match(row, Normalize("Иванов Иван")))
		assert.True(t, Match(row, Normalize("Иванов Иван Иванович Кажымукан")))
	})

	t.Run("national ids match only exactly", func(t *testing.T) {
		assert.True(t, Match(row, "880101300123"))
		assert.False(t, Match(row, "8801013001"))
	})

	t.Run("emails match only exactly", func(t *testing.T) {
		assert.True(t, Match(row, Normalize("ivanov@example.kz")))
		assert.False(t, Match(row, Normalize("ivan@example.kz")))
	})

	t.Run("sender name is a candidate", func(t *testing.T) {
		bare := Row{KeySender: "Сидоров Петр\nИИН: 770202400555"}
		assert.True(t, Match(bare, Normalize("Сидоров")))
		assert.True(t, Match(bare, "770202400555"))
	})

	t.Run("no match on unrelated key", func(t *testing.T) {
		assert.False(t, Match(row, Normalize("Абенов")))
	})
}

func TestNationalID(t *testing.T) {
	t.Run("explicit field wins", func(t *testing.T) {
		row := Row{KeyIIN: "123456789012", KeySender: "Кто-то\nИИН: 999999999999"}
		assert.Equal(t, "123456789012", NationalID(row))
	})

	t.Run("falls back to the sender field", func(t *testing.T) {
		row := Row{KeySender: "Кто-то\nИИН: 999999999999"}
		assert.Equal(t, "999999999999", NationalID(row))
	})

	t.Run("empty when absent", func(t *testing.T) {
		assert.Equal(t, "", NationalID(Row{KeyFullName: "Без ИИН"}))
	})
}
