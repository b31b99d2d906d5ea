package inventory

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/newtron-network/bulkcfg/pkg/util"
)

// Credentials is the login shared by every device worker.
type Credentials struct {
	Username string
	Password string
}

// String never includes the password.
func (c Credentials) String() string {
	return c.Username + ":****"
}

// LoadCredentials reads "username,password" from the first line of path.
// The line is split at the first comma only, so passwords may contain commas.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, util.NewInputMissingError(path)
		}
		return Credentials{}, fmt.Errorf("opening credentials: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Credentials{}, fmt.Errorf("reading credentials: %w", err)
		}
		return Credentials{}, fmt.Errorf("credentials file %s is empty", path)
	}
	line := strings.TrimRight(scanner.Text(), "\r")

	user, pass, ok := strings.Cut(line, ",")
	if !ok {
		return Credentials{}, fmt.Errorf("credentials file %s: first line must be username,password", path)
	}
	if user == "" {
		return Credentials{}, fmt.Errorf("credentials file %s: empty username", path)
	}
	return Credentials{Username: user, Password: pass}, nil
}
