// CLAUDE:SUMMARY Replays the archive's AJAX row-select POST inside the page and returns the command payload.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/flatexdl/archive"
)

// rowCommandJS posts the row index with the site's AJAX headers from
// inside the page, so the request rides the live session. The empty
// fetch URL targets the current form action. The response is parsed
// here only far enough to separate transport, JSON, and shape errors;
// interpreting the commands is the archive package's job.
const rowCommandJS = `async ({ tokenId, windowId, formData, rowIndex }) => {
  const fd = new FormData();
  for (const [k, v] of Object.entries(formData)) {
    fd.set(k, String(v));
  }
  fd.set('documentArchiveListTable.selectedrowidx', String(rowIndex));

  const res = await fetch('', {
    method: 'POST',
    headers: {
      'x-ajax': 'true',
      'x-requested-with': 'XMLHttpRequest',
      'x-tokenid': tokenId,
      'x-windowid': windowId,
    },
    body: fd,
  });

  const text = await res.text();
  try {
    const data = JSON.parse(text);
    return {
      ok: res.ok,
      status: res.status,
      commands: Array.isArray(data?.commands) ? data.commands : null,
      parseError: '',
    };
  } catch (error) {
    return { ok: res.ok, status: res.status, commands: null, parseError: String(error) };
  }
}`

// PostRowCommand replays the row-select action for a 0-based row index
// and returns the raw command payload. Called fresh on every resolution
// attempt; payloads must never be cached across attempts.
func (s *Session) PostRowCommand(ctx context.Context, state *archive.State, row int) (*archive.CommandPayload, error) {
	res, err := s.page.Context(ctx).Eval(rowCommandJS, map[string]interface{}{
		"tokenId":  state.Credentials.TokenID,
		"windowId": state.Credentials.WindowID,
		"formData": state.Form,
		"rowIndex": row,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: row command: %w", err)
	}

	data, err := json.Marshal(res.Value.Val())
	if err != nil {
		return nil, fmt.Errorf("browser: row command encode: %w", err)
	}
	var payload archive.CommandPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("browser: row command decode: %w", err)
	}
	return &payload, nil
}
