// CLAUDE:SUMMARY Hidden-iframe warm-up for 503-answering download endpoints, bounded at 30s plus a settle delay.
package browser

import (
	"context"
	"fmt"
)

// warmupJS loads the URL in a hidden zero-size iframe so the endpoint is
// triggered with full page semantics (session checks, rate-limit
// bookkeeping), waits for the load signal bounded at 30s, then a fixed
// 5s settle delay before removing the frame.
const warmupJS = `async (url) => {
  const frame = document.createElement('iframe');
  frame.style.visibility = 'hidden';
  frame.style.opacity = '0';
  frame.style.width = '0';
  frame.style.height = '0';

  await new Promise((resolve, reject) => {
    const t = window.setTimeout(() => reject(new Error('iframe-timeout')), 30000);
    frame.addEventListener('load', () => {
      window.clearTimeout(t);
      resolve(null);
    }, { once: true });
    frame.src = url;
    document.body.appendChild(frame);
  });

  await new Promise((resolve) => setTimeout(resolve, 5000));
  frame.remove();
}`

// Warmup pre-triggers a download URL inside the page. A timeout rejects
// the promise and surfaces here as an error; the orchestrator treats it
// as a retriable fetch failure.
func (s *Session) Warmup(ctx context.Context, url string) error {
	if _, err := s.page.Context(ctx).Eval(warmupJS, url); err != nil {
		return fmt.Errorf("browser: warm-up: %w", err)
	}
	return nil
}
