// CLAUDE:SUMMARY Sentinel errors for the archive pipeline: command resolution, host blocking, content checks, pre-run validation.
package archive

import "errors"

// ErrInvalidCommand is returned when an execute-command script contains
// no recognised PDF link pattern. Non-retriable per attempt; the row
// still gets its full retry budget because the site may answer the next
// row-select POST with a different script.
var ErrInvalidCommand = errors.New("archive: no PDF link pattern matched")

// ErrCommandHTTP is returned when the row-select POST itself fails at
// the HTTP level.
var ErrCommandHTTP = errors.New("archive: command HTTP error")

// ErrCommandParse is returned when the row-select response is not the
// expected JSON command document.
var ErrCommandParse = errors.New("archive: command parse failed")

// ErrCommandListMissing is returned when the response JSON carries no
// commands array.
var ErrCommandListMissing = errors.New("archive: command list missing")

// ErrExecuteMissing is returned when no execute command with a script
// field is present in the command list.
var ErrExecuteMissing = errors.New("archive: execute command missing")

// ErrNoRows aborts a run before any row processing: the page reported
// zero archive rows.
var ErrNoRows = errors.New("archive: no archive rows detected")

// ErrMissingCredentials aborts a run when the page context yielded no
// tokenId/windowId pair.
var ErrMissingCredentials = errors.New("archive: missing token/window credentials")

// ErrInvalidRange aborts a run when the requested row range does not
// satisfy 1 <= start <= end <= rowCount.
var ErrInvalidRange = errors.New("archive: invalid row range")
