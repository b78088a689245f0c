package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/providers/crypto"
	"github.com/GriffinCanCode/scriptbridge/internal/providers/fetch"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runtime event names. Plugins cannot emit these through the emit action.
const (
	EventInit            = "init"
	EventError           = "error"
	EventScriptError     = "script-error"
	EventLog             = "log"
	EventRequestComplete = "requestComplete"
	EventResponse        = "response"
	EventUpdateAlert     = "updateAlert"
	EventInited          = "inited"
)

var reservedEvents = map[string]bool{
	EventInit:            true,
	EventError:           true,
	EventScriptError:     true,
	EventLog:             true,
	EventRequestComplete: true,
	EventResponse:        true,
	EventUpdateAlert:     true,
	EventInited:          true,
}

const (
	maxLogMessage  = 4096
	maxAlertLength = 1024
)

// IsReserved reports whether name is a runtime event name
func IsReserved(name string) bool {
	return reservedEvents[name]
}

type capability func(grant *Grant, params map[string]interface{}) (interface{}, error)

// capabilities is the complete table of actions a sandbox may call.
// Anything not listed here fails closed.
func (b *Bridge) capabilities() map[string]capability {
	return map[string]capability{
		// runtime
		"emit":          b.emit,
		"send":          b.send,
		"log":           b.log,
		"response":      b.response,
		"scriptError":   b.scriptError,
		"updateAlert":   b.updateAlert,
		"request":       b.request,
		"cancelRequest": b.cancelRequest,

		// host services
		"crypto.aesEncrypt":  b.service("crypto.aesEncrypt", nil),
		"crypto.rsaEncrypt":  b.service("crypto.rsaEncrypt", map[string]interface{}{"padding": crypto.PaddingNone}),
		"crypto.randomBytes": b.service("crypto.randomBytes", nil),
		"crypto.md5":         b.service("crypto.md5", nil),
		"codec.from":         b.service("codec.from", nil),
		"codec.toString":     b.service("codec.toString", nil),
		"codec.inflate":      b.service("codec.inflate", nil),
		"codec.deflate":      b.service("codec.deflate", nil),
	}
}

func (b *Bridge) emit(grant *Grant, params map[string]interface{}) (interface{}, error) {
	name, err := types.GetString(params, "name", true)
	if err != nil {
		return nil, err
	}
	if IsReserved(name) {
		b.reject("reserved_event", "emit", grant)
		return nil, fmt.Errorf("event name is reserved: %s", name)
	}
	return nil, grant.emit(name, params["data"])
}

// send carries the lx.send events the host understands
func (b *Bridge) send(grant *Grant, params map[string]interface{}) (interface{}, error) {
	name, err := types.GetString(params, "name", true)
	if err != nil {
		return nil, err
	}
	switch name {
	case EventInited:
		return nil, grant.emit(EventInited, params["data"])
	case EventUpdateAlert:
		data := types.GetMap(params, "data")
		if data == nil {
			return nil, errors.New("updateAlert requires an object")
		}
		return b.updateAlert(grant, data)
	default:
		return nil, fmt.Errorf("unknown event: %s", name)
	}
}

func (b *Bridge) log(grant *Grant, params map[string]interface{}) (interface{}, error) {
	level, _ := types.GetString(params, "level", false)
	message, err := types.GetString(params, "message", false)
	if err != nil {
		return nil, err
	}
	if len(message) > maxLogMessage {
		message = message[:maxLogMessage]
	}

	logger := b.logger.With(logging.Plugin(grant.pluginID, grant.sessionID)...)
	switch level {
	case "debug":
		logger.Debug(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		level = "log"
		logger.Info(message)
	}

	return nil, grant.emit(EventLog, map[string]interface{}{"level": level, "message": message})
}

func (b *Bridge) response(grant *Grant, params map[string]interface{}) (interface{}, error) {
	action, err := types.GetString(params, "action", true)
	if err != nil {
		return nil, err
	}
	return nil, grant.emit(EventResponse, map[string]interface{}{
		"action": action,
		"status": types.GetBool(params, "status", true),
		"data":   params["data"],
	})
}

func (b *Bridge) scriptError(grant *Grant, params map[string]interface{}) (interface{}, error) {
	action, _ := types.GetString(params, "action", false)
	message, _ := types.GetString(params, "message", false)
	stack, _ := types.GetString(params, "stack", false)
	return nil, grant.emit(EventScriptError, map[string]interface{}{
		"action":  action,
		"message": message,
		"stack":   stack,
	})
}

// updateAlert is honored once per session; later calls fail
func (b *Bridge) updateAlert(grant *Grant, params map[string]interface{}) (interface{}, error) {
	text, err := types.GetString(params, "log", true)
	if err != nil {
		return nil, err
	}
	updateURL, err := types.GetString(params, "updateUrl", false)
	if err != nil {
		return nil, err
	}
	if updateURL != "" {
		u, err := url.Parse(updateURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, errors.New("updateUrl must be an http or https URL")
		}
	}

	if !grant.alerted.CompareAndSwap(false, true) {
		return nil, errors.New("update alert already sent")
	}

	text = truncateRunes(PlainText(b.policy, text), maxAlertLength)
	body := map[string]interface{}{"log": text}
	if updateURL != "" {
		body["updateUrl"] = updateURL
	}
	return nil, grant.emit(EventUpdateAlert, body)
}

// request starts an HTTP request and returns its key immediately. The
// outcome is emitted as requestComplete and delivered to the script callback.
func (b *Bridge) request(grant *Grant, params map[string]interface{}) (interface{}, error) {
	if b.fetcher == nil {
		return nil, errors.New("request capability unavailable")
	}
	rawURL, err := types.GetString(params, "url", true)
	if err != nil {
		return nil, err
	}
	req, err := fetch.ParseRequest(rawURL, types.GetMap(params, "options"))
	if err != nil {
		return nil, err
	}

	key := uuid.NewString()
	ctx := grant.track(key)
	if ctx == nil {
		return nil, ErrUnauthorized
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.complete(ctx, grant, key, req)
	}()
	return key, nil
}

func (b *Bridge) complete(ctx context.Context, grant *Grant, key string, req fetch.Request) {
	resp, err := b.fetcher.Do(ctx, req)

	// cancelled by the script or by teardown: nothing is delivered
	if !grant.finish(key) || !grant.Active() {
		return
	}

	reply := map[string]interface{}{}
	summary := map[string]interface{}{"requestKey": key}
	if err != nil {
		reply["error"] = err.Error()
		summary["error"] = err.Error()
	} else {
		reply["response"] = resp
		summary["statusCode"] = resp.StatusCode
	}

	payload, encErr := sonic.MarshalString(reply)
	if encErr != nil {
		b.logger.Warn("Encode request completion failed", zap.Error(encErr))
		payload = `{"error":"encode response failed"}`
	}

	_ = grant.emit(EventRequestComplete, summary)
	grant.deliver(key, payload)
}

func (b *Bridge) cancelRequest(grant *Grant, params map[string]interface{}) (interface{}, error) {
	key, err := types.GetString(params, "requestKey", true)
	if err != nil {
		return nil, err
	}
	return grant.finish(key), nil
}

// service forwards to a host service tool. defaults fill absent params.
func (b *Bridge) service(toolID string, defaults map[string]interface{}) capability {
	return func(grant *Grant, params map[string]interface{}) (interface{}, error) {
		if b.services == nil {
			return nil, errors.New("host services unavailable")
		}
		if grant.ctx.Err() != nil {
			return nil, ErrUnauthorized
		}
		for k, v := range defaults {
			if s, ok := params[k].(string); !ok || strings.TrimSpace(s) == "" {
				params[k] = v
			}
		}

		result, err := b.services.Execute(grant.ctx, toolID, params, grant.appContext())
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return nil, errors.New(result.ErrorMessage())
		}
		if v, ok := result.Data["result"]; ok {
			return v, nil
		}
		return result.Data, nil
	}
}
