package registry

import (
	"fmt"

	"github.com/dmbotnet/dmbn/lib/userstore"
	"github.com/dmbotnet/dmbn/rpc/common"
)

// WithAccess wraps a handler so it only runs for callers whose stored access
// flags contain the required flag. A rejected caller is notified with an
// error log envelope; the rejection is not an error towards Dispatch.
func WithAccess(store userstore.IUserStore, flag string, h HandlerFunc) HandlerFunc {
	return func(c Caller, args map[string]any) error {
		access, err := store.GetAccess(c.Login())
		if err != nil {
			return fmt.Errorf("failed to load access flags for %s: %v", c.Login(), err)
		}

		if !access[flag] {
			Logger.Warningf("%s lacks access flag %q", c.Login(), flag)
			_ = c.SendEnvelope(common.NewLogError(fmt.Sprintf("access denied: %q required", flag)))
			return nil
		}

		return h(c, args)
	}
}
