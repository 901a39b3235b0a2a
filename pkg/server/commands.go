package server

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/dialogue"
	"github.com/go-go-golems/colloquy/pkg/stream"
)

// command is the client-to-server envelope. One JSON object per websocket
// text message.
type command struct {
	Command        string           `json:"command"`
	ConversationID string           `json:"conversationId,omitempty"`
	Role           string           `json:"role,omitempty"`
	Config         *dialogue.Config `json:"config,omitempty"`
}

const (
	cmdJoin     = "join_conversation"
	cmdHistory  = "get_history"
	cmdStart    = "start_dialogue"
	cmdContinue = "continue_dialogue"
	cmdStop     = "stop_dialogue"
	cmdMetadata = "get_metadata"
)

// Command error codes surfaced to clients.
const (
	errCodeBadRequest = "bad_request"
	errCodeValidation = "validation"
	errCodeNotFound   = "not_found"
	errCodeBusy       = "busy"
	errCodeExhausted  = "capacity_exhausted"
	errCodeCapacity   = "capacity"
	errCodeInternal   = "internal"
)

var errUnknownCommand = errors.New("unknown command")

type helloFrame struct {
	Type         string   `json:"type"`
	ConnectionID string   `json:"connectionId"`
	Version      string   `json:"version"`
	Engines      []string `json:"engines"`
}

type dialogueStartedFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

type metadataFrame struct {
	Type         string                                 `json:"type"`
	Philosophers map[string]dialogue.PhilosopherProfile `json:"philosophers"`
	Authors      map[string]dialogue.AuthorProfile      `json:"authors"`
	Engines      []string                               `json:"engines"`
}

type commandErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// connState tracks one websocket client. A connection subscribes to at most
// one conversation at a time; joining another one switches it over without
// dropping the socket.
type connState struct {
	conn        *websocket.Conn
	role        stream.Role
	convID      string
	broadcaster *stream.Broadcaster
}

// send routes a point-to-point frame to the client. Once the connection is
// attached to a broadcaster, writes must go through its pool so they are
// serialized with the fan-out writes on the same socket.
func (st *connState) send(data []byte) {
	if len(data) == 0 {
		return
	}
	if st.broadcaster != nil {
		if st.broadcaster.Pool().SendToOne(st.conn, data) {
			return
		}
		// Detached behind our back, e.g. conversation teardown.
		st.convID = ""
		st.broadcaster = nil
	}
	if err := st.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Debug().Err(err).Msg("ws write failed")
	}
}

func (st *connState) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("could not marshal frame")
		return
	}
	st.send(b)
}

func (st *connState) sendError(code, msg string) {
	st.sendJSON(commandErrorFrame{Type: stream.FrameCommandError, Code: code, Message: msg})
}

// detach unsubscribes the connection from its current conversation, if any,
// keeping the socket open.
func (st *connState) detach(s *Server) {
	if st.convID != "" {
		s.hub.Detach(st.convID, st.conn)
	}
	st.convID = ""
	st.broadcaster = nil
}

// serveConn runs the command loop for one websocket client until it
// disconnects.
func (s *Server) serveConn(conn *websocket.Conn) {
	st := &connState{conn: conn, role: stream.RoleControl}
	connID := uuid.NewString()
	defer func() {
		if st.convID != "" {
			s.hub.Leave(st.convID, conn)
		} else {
			_ = conn.Close()
		}
	}()

	st.sendJSON(helloFrame{
		Type:         stream.FrameHello,
		ConnectionID: connID,
		Version:      Version,
		Engines:      s.registry.Engines().Providers(),
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			st.sendError(errCodeBadRequest, "could not decode command")
			continue
		}
		if err := s.dispatch(st, cmd); err != nil {
			st.sendError(errorCode(err), err.Error())
		}
	}
}

func (s *Server) dispatch(st *connState, cmd command) error {
	switch cmd.Command {
	case cmdJoin:
		return s.handleJoin(st, cmd)
	case cmdHistory:
		return s.handleHistory(st, cmd)
	case cmdStart:
		return s.handleStart(st, cmd)
	case cmdContinue:
		return s.handleContinue(cmd)
	case cmdStop:
		return s.handleStop(st, cmd)
	case cmdMetadata:
		return s.handleMetadata(st)
	default:
		return errors.Wrapf(errUnknownCommand, "%q", cmd.Command)
	}
}

// handleJoin subscribes the connection to a conversation's stream. The
// snapshot is captured and queued atomically with the subscription, so the
// client catches up on finalized history before any live frame reaches it.
func (s *Server) handleJoin(st *connState, cmd command) error {
	sess, err := s.registry.Get(cmd.ConversationID)
	if err != nil {
		return err
	}
	role := stream.RoleControl
	if cmd.Role != "" {
		role, err = stream.ParseRole(cmd.Role)
		if err != nil {
			return &dialogue.ValidationError{Field: "role", Reason: err.Error()}
		}
	}

	if st.convID != cmd.ConversationID {
		st.detach(s)
	}
	b, err := s.hub.Join(cmd.ConversationID, role, st.conn, func() []byte {
		return stream.SnapshotFrame(sess.Snapshot())
	})
	if err != nil {
		return errors.Wrap(err, "could not join conversation stream")
	}
	st.convID = cmd.ConversationID
	st.role = role
	st.broadcaster = b
	return nil
}

func (s *Server) handleHistory(st *connState, cmd command) error {
	sess, err := s.registry.Get(cmd.ConversationID)
	if err != nil {
		return err
	}
	st.send(stream.SnapshotFrame(sess.Snapshot()))
	return nil
}

// handleStart creates a conversation, subscribes the issuing connection,
// and kicks off the opening turn.
func (s *Server) handleStart(st *connState, cmd command) error {
	if cmd.Config == nil {
		return errors.Wrap(errUnknownCommand, "start_dialogue requires a config")
	}
	sess, err := s.registry.Create(*cmd.Config)
	if err != nil {
		return err
	}

	st.detach(s)
	// No greeting needed: the conversation is brand new and produces no
	// events until the opening turn below.
	b, err := s.hub.Join(sess.ID, st.role, st.conn, nil)
	if err != nil {
		return errors.Wrap(err, "could not join conversation stream")
	}
	st.convID = sess.ID
	st.broadcaster = b

	st.sendJSON(dialogueStartedFrame{Type: stream.FrameDialogueStarted, ConversationID: sess.ID})
	st.send(stream.SnapshotFrame(sess.Snapshot()))

	return sess.StartOpening(s.baseCtx)
}

func (s *Server) handleContinue(cmd command) error {
	sess, err := s.registry.Get(cmd.ConversationID)
	if err != nil {
		return err
	}
	return sess.ContinueExchange(s.baseCtx)
}

// handleStop destroys the conversation. The closed event reaches
// subscribers through the broadcaster, which detaches them once it is
// delivered; the idle reaper then retires the broadcaster itself.
func (s *Server) handleStop(st *connState, cmd command) error {
	if err := s.registry.Destroy(cmd.ConversationID); err != nil {
		return err
	}
	if st.convID == cmd.ConversationID {
		st.convID = ""
		st.broadcaster = nil
	}
	return nil
}

func (s *Server) handleMetadata(st *connState) error {
	catalog := s.registry.Catalog()
	st.sendJSON(metadataFrame{
		Type:         stream.FrameMetadata,
		Philosophers: catalog.Philosophers(),
		Authors:      catalog.Authors(),
		Engines:      s.registry.Engines().Providers(),
	})
	return nil
}

// errorCode maps domain errors onto wire error codes.
func errorCode(err error) string {
	var vErr *dialogue.ValidationError
	switch {
	case errors.As(err, &vErr):
		return errCodeValidation
	case errors.Is(err, dialogue.ErrNotFound):
		return errCodeNotFound
	case errors.Is(err, dialogue.ErrBusy):
		return errCodeBusy
	case errors.Is(err, dialogue.ErrExhausted):
		return errCodeExhausted
	case errors.Is(err, dialogue.ErrCapacity):
		return errCodeCapacity
	case errors.Is(err, errUnknownCommand):
		return errCodeBadRequest
	default:
		return errCodeInternal
	}
}
