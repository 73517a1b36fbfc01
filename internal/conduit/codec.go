package conduit

import (
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pimsync/internal/calstore"
	"github.com/matheus3301/pimsync/internal/category"
	"github.com/matheus3301/pimsync/internal/config"
	"github.com/matheus3301/pimsync/internal/pilot"
)

// codec converts between desktop components and packed device records for
// one record type.
type codec interface {
	kind() config.Kind
	label() string
	dbName() string
	unpackAppInfo(b []byte) (pilot.AppInfo, error)
	toDevice(c *calstore.Component, env *codecEnv) []byte
	fromDevice(rec *pilot.Record, in *calstore.Component, env *codecEnv) (*calstore.Component, error)
}

// codecEnv is the session state a conversion depends on.
type codecEnv struct {
	tz       *time.Location
	priority int
	table    *category.Table
	now      time.Time
	logger   *zap.Logger
}

// newComponent starts a component for a record the desktop has not seen,
// or clones the one it is replacing.
func newComponent(kind calstore.Kind, in *calstore.Component, now time.Time) *calstore.Component {
	if in == nil {
		c := calstore.NewComponent(kind, "")
		c.Created = &now
		return c
	}
	return in.Clone()
}

// finishFromDevice applies the fields every record type shares.
func finishFromDevice(c *calstore.Component, rec *pilot.Record, env *codecEnv) {
	c.Categories = category.FromRemote(rec.Category, env.table, c.Categories)
	c.Transparency = calstore.TranspOpaque
	if rec.Secret {
		c.Classification = calstore.ClassPrivate
	} else {
		c.Classification = calstore.ClassPublic
	}
	c.Sequence++
}
