// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"

	"github.com/poolferry/poolferry/apiserver/params"
)

const (
	// pingPeriod keeps otherwise idle event streams alive through
	// intermediaries that reap quiet connections.
	pingPeriod = 1 * time.Minute

	// writeWait bounds how long a control or data write may block
	// before the connection is considered dead.
	writeWait = 10 * time.Second
)

var websocketUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func websocketServer(w http.ResponseWriter, req *http.Request, handler func(ws *websocket.Conn)) {
	conn, err := websocketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Errorf("problem initiating websocket: %v", err)
		return
	}
	handler(conn)
}

// sendInitialError writes out the error as a params.ErrorResult
// serialized with JSON with a new line character at the end. Clients
// read this first message to learn whether the stream is live before
// any events arrive.
func sendInitialError(ws *websocket.Conn, err error) error {
	wrapped := &params.ErrorResult{
		Error: ServerError(err),
	}

	body, err := json.Marshal(wrapped)
	if err != nil {
		return errors.Annotatef(err, "cannot marshal error %#v", wrapped)
	}
	body = append(body, '\n')

	writer, err := ws.NextWriter(websocket.TextMessage)
	if err != nil {
		return errors.Annotate(err, "problem getting writer")
	}
	defer writer.Close()
	_, err = writer.Write(body)

	if wrapped.Error != nil {
		// Tell the other end we are closing.
		ws.WriteMessage(websocket.CloseMessage, []byte{})
	}

	return errors.Trace(err)
}
