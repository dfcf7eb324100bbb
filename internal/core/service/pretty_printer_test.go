package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/guillermoBallester/sqlpeek/internal/core/domain"
	"github.com/guillermoBallester/sqlpeek/internal/notify"
	"github.com/stretchr/testify/assert"
)

func newPrettyPrinter(bus *notify.Notifier, out *bytes.Buffer) *PrettyPrinter {
	return NewPrettyPrinter(bus, domain.NewPlainFormatter(), nil, out, testLogger())
}

func TestPrettyPrinter_StartsOff(t *testing.T) {
	p := newPrettyPrinter(notify.New(testLogger()), &bytes.Buffer{})
	assert.Equal(t, PrettyOff, p.State())
	assert.Equal(t, "OFF", p.State().String())
}

func TestPrettyPrinter_ToggleOnPrintsFormattedSQL(t *testing.T) {
	bus := notify.New(testLogger())
	var out bytes.Buffer
	p := newPrettyPrinter(bus, &out)

	assert.Equal(t, PrettyOn, p.Toggle())
	assert.Equal(t, "Pretty print SQL is now ON.\n", out.String())

	out.Reset()
	runQuery(context.Background(), bus, nil, "select a from b where c=1")
	assert.Equal(t, "\nSELECT a\nFROM b\nWHERE c = 1\n", out.String())
}

func TestPrettyPrinter_SkipsIntrospectionButNotExplain(t *testing.T) {
	bus := notify.New(testLogger())
	var out bytes.Buffer
	p := newPrettyPrinter(bus, &out)
	p.Toggle()
	out.Reset()

	runQuery(context.Background(), bus, nil, "SHOW FULL FIELDS FROM `users`")
	runQuery(context.Background(), bus, nil, "SHOW CREATE TABLE `users`")
	assert.Empty(t, out.String())

	runQuery(context.Background(), bus, nil, "EXPLAIN SELECT 1")
	assert.Contains(t, out.String(), "SELECT 1")
}

func TestPrettyPrinter_ToggleTwiceReleasesListener(t *testing.T) {
	bus := notify.New(testLogger())
	var out bytes.Buffer
	p := newPrettyPrinter(bus, &out)

	p.Toggle()
	assert.Equal(t, PrettyOff, p.Toggle())
	assert.Equal(t, "Pretty print SQL is now ON.\nPretty print SQL is now OFF.\n", out.String())
	assert.Zero(t, bus.Len())

	out.Reset()
	runQuery(context.Background(), bus, nil, "SELECT * FROM users")
	assert.Empty(t, out.String())
}

func TestPrettyPrinter_RepeatedCycles(t *testing.T) {
	bus := notify.New(testLogger())
	p := newPrettyPrinter(bus, &bytes.Buffer{})

	for range 5 {
		p.Toggle()
		assert.Equal(t, 1, bus.Len())
		p.Toggle()
		assert.Zero(t, bus.Len())
	}
}
