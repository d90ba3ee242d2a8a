package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/natefinch/atomic"
)

// writeJSONArray marshals v (expected to be a slice) through sonic for
// speed, then re-indents with encoding/json to preserve the byte-exact
// 2-space-indent pretty-print guarantee of spec.md §6, and finally writes
// it via a temp-file-then-rename so readers never observe a torn file.
func writeJSONArray(path string, v interface{}) error {
	compact, err := sonic.Marshal(v)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return err
	}
	pretty.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(pretty.Bytes()))
}

// readJSONArray reads and unmarshals a JSON array file via sonic. A
// missing file is treated as an empty result, not an error.
func readJSONArray(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return sonic.Unmarshal(data, v)
}
