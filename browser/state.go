// CLAUDE:SUMMARY One-shot in-page scrape of archive state: row count, credentials, filter form values.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/flatexdl/archive"
)

// archiveRowSelector matches the clickable document rows of the classic
// archive view.
const archiveRowSelector = `tr[onclick^="DocumentViewer.openPopupIfRequired"]`

// archiveStateJS reads everything the run needs from the live page in
// one evaluation: the page URL, the row count, the webcore credentials,
// and the current filter form values (falling back to a 5-years-back
// date range when the inputs are empty).
const archiveStateJS = `({ rowSelector, defaultStart, defaultEnd }) => {
  const pick = (selector) => document.querySelector(selector);
  const value = (selector, fallback) => {
    const el = pick(selector);
    if (!el) return fallback;
    if ('value' in el && el.value) return el.value;
    return fallback;
  };
  const idx = (selector, fallback) => {
    const el = pick(selector);
    const v = el?.dataset?.valueSelecteditemindex;
    return (v ?? fallback).toString();
  };

  let tokenId = '';
  let windowId = '';

  try {
    tokenId = window.webcore?.getTokenId?.() || '';
    windowId = window.webcore?.getWindowManagement?.().getCurrentWindowId?.() || '';
  } catch (_) {
    // leave empty; the run aborts on missing credentials
  }

  return {
    pageUrl: location.href,
    rowCount: document.querySelectorAll(rowSelector).length,
    credentials: { tokenId, windowId },
    form: {
      'dateRangeComponent.startDate.text': value('#documentArchiveListForm_dateRangeComponent_startDate', defaultStart),
      'dateRangeComponent.endDate.text': value('#documentArchiveListForm_dateRangeComponent_endDate', defaultEnd),
      'accountSelection.account.selecteditemindex': idx('#documentArchiveListForm_accountSelection_account', '0'),
      'documentCategory.selecteditemindex': idx('#documentArchiveListForm_documentCategory', '0'),
      'readState.selecteditemindex': idx('#documentArchiveListForm_readState', '0'),
      'dateRangeComponent.retrievalPeriodSelection.selecteditemindex': idx('#documentArchiveListForm_dateRangeComponent_retrievalPeriodSelection', '0'),
      'storeSettings.checked': 'off',
    },
  };
}`

// ArchiveState captures the page state once per run. The result is
// read-only for the rest of the run.
func (s *Session) ArchiveState(ctx context.Context) (*archive.State, error) {
	now := time.Now()
	res, err := s.page.Context(ctx).Eval(archiveStateJS, map[string]string{
		"rowSelector":  archiveRowSelector,
		"defaultStart": fmt.Sprintf("01.01.%d", now.Year()-5),
		"defaultEnd":   now.Format("02.01.2006"),
	})
	if err != nil {
		return nil, fmt.Errorf("browser: archive state: %w", err)
	}

	data, err := json.Marshal(res.Value.Val())
	if err != nil {
		return nil, fmt.Errorf("browser: archive state encode: %w", err)
	}
	var state archive.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("browser: archive state decode: %w", err)
	}

	s.log.Info("browser: archive state captured",
		"rows", state.RowCount, "page", state.PageURL)
	return &state, nil
}
