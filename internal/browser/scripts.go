package browser

import "fmt"

// StealthScript hides the most common automation fingerprints. It is
// installed before any page script runs where the engine supports that.
const StealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['zh-TW', 'zh', 'en-US', 'en'] });
if (window.navigator.permissions && window.navigator.permissions.query) {
  const originalQuery = window.navigator.permissions.query;
  window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters)
  );
}
window.chrome = window.chrome || { runtime: {} };
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Promise;
delete window.cdc_adoQpoasnfa76pfcZLmcfl_Symbol;
`

// Every script below evaluates to true so engines always get a value back.

// ScrollScript scrolls the window to the given vertical offset.
func ScrollScript(y int) string {
	return fmt.Sprintf("(() => { window.scrollTo(0, %d); return true; })()", y)
}

// MouseScript dispatches synthetic mousemove and mousedown events at random
// coordinates.
const MouseScript = `(() => {
  const fire = (type, fx, fy) => document.dispatchEvent(new MouseEvent(type, {
    view: window, bubbles: true, cancelable: true,
    clientX: Math.random() * window.innerWidth * fx,
    clientY: Math.random() * window.innerHeight * fy
  }));
  fire('mousemove', 1, 1);
  fire('mousedown', 0.5, 0.5);
  return true;
})()`

// stealthEval wraps StealthScript for engines that can only run it after load.
var stealthEval = "(() => { try {" + StealthScript + "} catch (e) {} return true; })()"
