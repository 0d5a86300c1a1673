package cmd

import (
	"errors"
	"fmt"
	"strings"

	werrors "github.com/Aman-CERP/watchset/internal/errors"
	"github.com/Aman-CERP/watchset/internal/inventory"
	"github.com/Aman-CERP/watchset/internal/lock"
)

// errNoFiles is returned when neither arguments nor an inventory is given.
var errNoFiles = errors.New("nothing to watch: pass files or --inventory")

// buildSource combines positional files and the inventory file.
// Returns the source and the inventory path, if any.
func buildSource(args []string, inventoryPath string) (inventory.Source, string, error) {
	var sources []inventory.Source
	if len(args) > 0 {
		sources = append(sources, inventory.Static(args))
	}

	var invPath string
	if inventoryPath != "" {
		f, err := inventory.NewFile(inventoryPath)
		if err != nil {
			return nil, "", err
		}
		invPath = f.Path
		sources = append(sources, f)
	}

	if len(sources) == 0 {
		return nil, "", errNoFiles
	}
	return inventory.Merge(sources...), invPath, nil
}

// lockFor returns the single-instance lock for a watch run. Runs over the
// same inventory, or the same argument list, share a lock.
func lockFor(dir string, args []string, inventoryPath string) *lock.InstanceLock {
	key := inventoryPath
	if key == "" {
		key = strings.Join(args, "\x00")
	}
	return lock.ForKey(dir, key)
}

// formatError renders a command error for the terminal.
func formatError(err error) string {
	var we *werrors.WatchError
	if errors.As(err, &we) {
		return werrors.FormatForCLI(we)
	}
	return fmt.Sprintf("Error: %v\n", err)
}
