package jobcentre

import (
	"fmt"

	"github.com/buger/jsonparser"
)

type reqType int

const (
	reqUnknown reqType = iota
	reqGet
	reqPut
	reqDelete
	reqAbort
)

// request is a parsed line of the Job Centre's newline-delimited JSON
// protocol (spec.md §4.4), mirroring struct rq in the source.
type request struct {
	typ      reqType
	queues   []string
	wait     bool
	queue    string
	priority int64
	payload  []byte
	id       int64
}

// parseRequest decodes one JSON line using jsonparser's streaming field
// lookups, matching the original's permissive json_object/json_field
// macro-based parser: unknown fields are ignored, missing required fields
// for the given request type are an error.
func parseRequest(line []byte) (*request, error) {
	typStr, err := jsonparser.GetString(line, "request")
	if err != nil {
		return nil, fmt.Errorf("missing request field: %w", err)
	}

	r := &request{}
	switch typStr {
	case "get":
		r.typ = reqGet
		var queues []string
		_, arrErr := jsonparser.ArrayEach(line, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
			if dataType == jsonparser.String {
				queues = append(queues, string(value))
			}
		}, "queues")
		if arrErr != nil || len(queues) == 0 {
			return nil, fmt.Errorf("expected queues in get request")
		}
		r.queues = queues
		r.wait, _ = jsonparser.GetBoolean(line, "wait")
		return r, nil

	case "put":
		r.typ = reqPut
		queue, err := jsonparser.GetString(line, "queue")
		if err != nil || queue == "" {
			return nil, fmt.Errorf("no queue in put request")
		}
		pri, err := jsonparser.GetInt(line, "pri")
		if err != nil || pri < 0 {
			return nil, fmt.Errorf("no priority in put request")
		}
		payload, _, _, err := jsonparser.Get(line, "job")
		if err != nil {
			return nil, fmt.Errorf("no payload in put request")
		}
		r.queue = queue
		r.priority = pri
		r.payload = payload
		return r, nil

	case "delete":
		r.typ = reqDelete
		id, err := jsonparser.GetInt(line, "id")
		if err != nil {
			return nil, fmt.Errorf("no id in delete request")
		}
		r.id = id
		return r, nil

	case "abort":
		r.typ = reqAbort
		id, err := jsonparser.GetInt(line, "id")
		if err != nil {
			return nil, fmt.Errorf("no id in abort request")
		}
		r.id = id
		return r, nil

	default:
		return nil, fmt.Errorf("unrecognized request type: %s", typStr)
	}
}

// Response builders. The original constructs these with a hand-rolled
// snprintf macro rather than a JSON encoding library; this keeps the same
// approach since every field here is already wire-safe (ids/priorities are
// integers, queue names come from a prior json.GetString, and job payloads
// are passed through verbatim as raw JSON).

func respOK(id, priority int64, queue string, payload []byte) string {
	return fmt.Sprintf(`{"status":"ok","id":%d,"job":%s,"pri":%d,"queue":%q}`+"\n", id, payload, priority, queue)
}

func respPutOK(id int64) string {
	return fmt.Sprintf(`{"status":"ok","id":%d}`+"\n", id)
}

func respOKPlain() string {
	return "{\"status\":\"ok\"}\n"
}

func respNoJob() string {
	return "{\"status\":\"no-job\"}\n"
}

func respError() string {
	return "{\"status\":\"error\"}\n"
}
