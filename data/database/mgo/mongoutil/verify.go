package mongoutil

import (
	"github.com/zhihao1021/tjoy/tools/errs"
)

// ValidateAndSetDefaults fills pool and retry defaults and, when only an
// address list is given, builds the URI (authSource falls back to Database).
func (c *Config) ValidateAndSetDefaults() error {
	switch {
	case c.Uri == "" && len(c.Address) == 0:
		return errs.ErrArgs.WrapMsg("mongo: uri or address required")
	case c.Database == "":
		return errs.ErrArgs.WrapMsg("mongo: database required")
	}
	c.MaxPoolSize = orDefault(c.MaxPoolSize, defaultMaxPoolSize)
	c.MaxRetry = orDefault(c.MaxRetry, defaultMaxRetry)
	if c.Uri != "" {
		return nil
	}
	src := c.AuthSource
	if src == "" {
		src = c.Database
	}
	c.Uri = buildMongoURI(c, src)
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
