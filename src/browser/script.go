package browser

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Binding names exposed to the page through Runtime.addBinding.
const (
	bindingDisplayMedia = "__stackfieldDisplayMedia"
	bindingClipboard    = "__stackfieldClipboard"
	bindingTitle        = "__stackfieldTitle"
	bindingFocus        = "__stackfieldFocus"
	bindingExternal     = "__stackfieldOpenExternal"
)

var bindings = []string{
	bindingDisplayMedia,
	bindingClipboard,
	bindingTitle,
	bindingFocus,
	bindingExternal,
}

// unreadQuery is true when a visible direct-message badge holds a count
// above zero.
const unreadQuery = `(() => {
  let found = false;
  document.querySelectorAll('span.SpnGroupUnreaded.SpnGroupRed').forEach((badge) => {
    const count = parseInt((badge.textContent || '').trim(), 10) || 0;
    if (count > 0 && badge.offsetParent !== null) found = true;
  });
  return found;
})()`

const bootstrapTemplate = `(() => {
  if (window.__stackfield) return;
  const allowed = new Set({{ALLOWED}});
  const send = (name, payload) => {
    try { window[name](JSON.stringify(payload)); } catch (e) {}
  };
  const pending = new Map();
  let seq = 0;
  const request = (name, payload) => new Promise((resolve) => {
    const id = 'r' + (++seq);
    pending.set(id, resolve);
    send(name, Object.assign({ id }, payload));
  });
  window.__stackfield = {
    settle(id, value) {
      const fn = pending.get(id);
      if (!fn) return false;
      pending.delete(id);
      fn(value);
      return true;
    },
    testClipboard: () => request('{{CLIPBOARD}}', { test: true }),
    lastSelection: null,
  };

  const media = navigator.mediaDevices;
  if (media && media.getDisplayMedia) {
    const original = media.getDisplayMedia.bind(media);
    media.getDisplayMedia = async (constraints) => {
      const result = await request('{{DISPLAY_MEDIA}}', {});
      if (!result || !result.video) {
        throw new DOMException('Permission denied', 'NotAllowedError');
      }
      window.__stackfield.lastSelection = result;
      const c = Object.assign({}, constraints || {});
      const video = typeof c.video === 'object' ? Object.assign({}, c.video) : {};
      video.displaySurface = result.video.id.startsWith('screen:') ? 'monitor' : 'window';
      c.video = video;
      if (result.audio && c.audio === undefined) c.audio = true;
      return original(c);
    };
  }

  const clip = navigator.clipboard;
  if (clip && clip.write) {
    const originalWrite = clip.write.bind(clip);
    clip.write = async (items) => {
      for (const item of items) {
        const type = item.types.find((t) => t.startsWith('image/'));
        if (!type) continue;
        try {
          const blob = await item.getType(type);
          const dataUrl = await new Promise((resolve, reject) => {
            const reader = new FileReader();
            reader.onload = () => resolve(reader.result);
            reader.onerror = () => reject(reader.error);
            reader.readAsDataURL(blob);
          });
          const result = await request('{{CLIPBOARD}}', { dataUrl });
          if (result && result.success) return;
        } catch (e) {}
        break;
      }
      return originalWrite(items);
    };
  }

  let lastTitle = null;
  const reportTitle = () => {
    if (document.title === lastTitle) return;
    lastTitle = document.title;
    send('{{TITLE}}', { title: lastTitle });
  };
  const watchTitle = () => {
    reportTitle();
    new MutationObserver(reportTitle).observe(document.head || document.documentElement, {
      childList: true, characterData: true, subtree: true,
    });
  };
  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', watchTitle);
  } else {
    watchTitle();
  }

  window.addEventListener('focus', () => send('{{FOCUS}}', {}));

  document.addEventListener('click', (e) => {
    const a = e.target && e.target.closest ? e.target.closest('a[href]') : null;
    if (!a) return;
    let url;
    try { url = new URL(a.href, location.href); } catch (err) { return; }
    const web = url.protocol === 'http:' || url.protocol === 'https:';
    if ((web && !allowed.has(url.hostname)) || url.protocol === 'mailto:') {
      e.preventDefault();
      send('{{EXTERNAL}}', { url: url.href });
    }
  }, true);
})();`

// bootstrapScript returns the script installed in every page document.
func bootstrapScript(allowedHosts []string) string {
	hosts := append([]string(nil), allowedHosts...)
	sort.Strings(hosts)
	list, _ := json.Marshal(hosts)
	return strings.NewReplacer(
		"{{ALLOWED}}", string(list),
		"{{DISPLAY_MEDIA}}", bindingDisplayMedia,
		"{{CLIPBOARD}}", bindingClipboard,
		"{{TITLE}}", bindingTitle,
		"{{FOCUS}}", bindingFocus,
		"{{EXTERNAL}}", bindingExternal,
	).Replace(bootstrapTemplate)
}

// settleExpr resolves the page promise waiting on id with value. It always
// evaluates to a boolean.
func settleExpr(id string, value any) (string, error) {
	idJSON, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode reply: %w", err)
	}
	return fmt.Sprintf("(window.__stackfield ? window.__stackfield.settle(%s, %s) : false)", idJSON, valueJSON), nil
}
