/*
Package sandbox runs one untrusted plugin script inside an isolated goja VM.

# Overview

A Runtime is created with a fixed set of bindings and nothing else:

  - one native function, the only path from script code to the host
  - the plugin's descriptor info, exposed read-only as lx.currentScriptInfo
  - console, forwarded to the native log action when enabled

require, process, module, exports and the timer functions are removed before
any plugin code runs. The native function is a Go closure; whatever it closes
over (the session secret in particular) is not reachable from script code.

# Script API

The embedded prelude builds the plugin-facing API on top of the native
function before evaluation:

	register(function (action, payload) { ... })
	emit(name, data)
	lx.on(lx.EVENT_NAMES.request, handler)
	lx.send(name, data)
	lx.request(url, options, callback)   // returns cancel()
	lx.utils.crypto / lx.utils.buffer / lx.utils.zlib

Handlers may return promises. A resolved value is reported through the
response action and a rejection through the scriptError action.

# Execution

Evaluate, Dispatch and Complete are serialized by the runtime and bounded by
Config.Timeout and the caller's context; both interrupt the VM when they
expire. Interrupt and Close may be called from any goroutine. An uncaught
exception from Dispatch is returned as *ScriptError and the runtime remains
usable.
*/
package sandbox
