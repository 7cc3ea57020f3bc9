package main

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tickline/lockstep/internal/clientlogic"
	"github.com/tickline/lockstep/internal/config"
	"github.com/tickline/lockstep/internal/demogame"
	"github.com/tickline/lockstep/internal/telemetry"
	"github.com/tickline/lockstep/internal/transport"
	"github.com/tickline/lockstep/pkg/connlayer"
	"github.com/tickline/lockstep/pkg/steps"
	"github.com/tickline/lockstep/pkg/ticklog"
	"github.com/tickline/lockstep/pkg/wire"
)

// handshakeRequestID and joinRequestID are constant rather than random: this
// client ever makes one connect attempt and one join attempt per process
// lifetime, so there's no reuse hazard a monotonic counter would guard
// against.
const (
	handshakeRequestID = 0x0001020304050607
	joinRequestID      = 0x01
)

// clientApp wires clientlogic's state machine to the wire protocol and the
// transport socket: it owns the framing session, the demo game's state, and
// the synthetic input loop that drives Rectify forward every tick.
type clientApp struct {
	cfg      config.Client
	tel      *telemetry.Telemetry
	tr       *transport.Transport
	hostAddr net.Addr

	mu      sync.Mutex
	session *connlayer.ClientSession
	logic   *clientlogic.ClientLogic[demogame.Command]
	game    *demogame.Game
	codec   demogame.Codec
	pinger  *connlayer.Pinger

	nextTick ticklog.TickId
}

// pingInterval is how often a connected client probes the host for
// liveness/RTT, independent of the simulation tick rate.
const pingInterval = time.Second

func newClientApp(cfg config.Client, tel *telemetry.Telemetry, tr *transport.Transport, hostAddr net.Addr) *clientApp {
	return &clientApp{
		cfg:      cfg,
		tel:      tel,
		tr:       tr,
		hostAddr: hostAddr,
		session:  connlayer.NewClientSession(),
		logic:    clientlogic.New[demogame.Command](),
		game:     demogame.New(),
		pinger:   connlayer.NewPinger(pingInterval),
	}
}

func (a *clientApp) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.tick(now)
		}
	}
}

func (a *clientApp) tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.State() != connlayer.StateConnected {
		a.sendHandshake()
		return
	}

	if a.pinger.Due(now) {
		a.sendPing(now)
	}

	if a.logic.Phase() == clientlogic.PhaseSendPredictedSteps {
		a.nextTick++
		a.logic.AddPredictedStep(a.nextTick, map[steps.LocalIndex]steps.Step[demogame.Command]{
			0: steps.Custom(demogame.Command{Kind: demogame.MoveRight, Amount: 1}),
		})
		if err := a.logic.Update(a.game); err != nil {
			a.tel.Warn("rectify update failed", zap.Error(err))
		}
	}

	for _, out := range a.logic.Send(now) {
		a.sendOutgoing(out)
	}
}

func (a *clientApp) sendHandshake() {
	req := a.session.BeginHandshake(handshakeRequestID, a.cfg.NimbleVersion, a.cfg.AppVersion, a.cfg.UseDebugStream)
	w := wire.NewWriter()
	w.U8(0)
	w.U8(uint8(wire.TagConnectRequest))
	req.Encode(w)
	if err := a.tr.Send(a.hostAddr, w.Bytes()); err != nil {
		a.tel.Warn("handshake send failed", zap.Error(err))
	}
}

func (a *clientApp) sendPing(now time.Time) {
	inner := wire.NewWriter()
	inner.U8(uint8(wire.TagPing))
	wire.Ping{ClientTime: a.pinger.Send(now)}.Encode(inner)

	framed, err := a.session.FrameOutbound(uint16(now.UnixMilli()), inner.Bytes())
	if err != nil {
		a.tel.Warn("ping frame failed", zap.Error(err))
		return
	}
	if err := a.tr.Send(a.hostAddr, framed); err != nil {
		a.tel.Warn("ping send failed", zap.Error(err))
	}
}

func (a *clientApp) sendOutgoing(out clientlogic.OutgoingCommand[demogame.Command]) {
	inner := wire.NewWriter()
	switch out.Kind {
	case clientlogic.OutgoingJoinGame:
		inner.U8(uint8(wire.TagJoinGame))
		out.JoinGame.Encode(inner)
	case clientlogic.OutgoingDownloadGameStateRequest:
		inner.U8(uint8(wire.TagDownloadGameStateRequest))
		out.DownloadGameStateRequest.Encode(inner)
	case clientlogic.OutgoingBlobStreamChannel:
		if out.BlobCommand == nil {
			return
		}
		inner.U8(uint8(wire.TagBlobStreamChannelUp))
		if out.BlobCommand.IsStart {
			inner.U8(uint8(wire.BlobSubTagAckStart))
			out.BlobCommand.AckStart.Encode(inner)
		} else {
			inner.U8(uint8(wire.BlobSubTagAckChunk))
			out.BlobCommand.AckChunk.Encode(inner)
		}
	case clientlogic.OutgoingSteps:
		inner.U8(uint8(wire.TagSteps))
		if err := out.Steps.Encode(inner, a.codec); err != nil {
			a.tel.Warn("encode steps failed", zap.Error(err))
			return
		}
	default:
		return
	}

	framed, err := a.session.FrameOutbound(uint16(time.Now().UnixMilli()), inner.Bytes())
	if err != nil {
		a.tel.Warn("frame outbound failed", zap.Error(err))
		return
	}
	if err := a.tr.Send(a.hostAddr, framed); err != nil {
		a.tel.Warn("send failed", zap.Error(err))
	}
}

// handleDatagram is the transport.Handler installed on the Transport. Before
// the handshake completes, every inbound datagram is treated as an
// out-of-band reply (no hash to verify yet); once Connected, datagrams carry
// the usual in-band header.
func (a *clientApp) handleDatagram(in transport.Inbound) {
	if len(in.Data) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.State() != connlayer.StateConnected {
		a.handleHandshakeReply(in.Data)
		return
	}
	a.handleInBand(in.Data)
}

func (a *clientApp) handleHandshakeReply(data []byte) {
	connID := data[0]
	r := wire.NewReader(data[1:])
	tag, err := r.U8()
	if err != nil {
		return
	}
	if wire.Tag(tag) != wire.TagConnectionAccepted {
		a.tel.Info("handshake: unexpected tag before connected", zap.Uint8("tag", tag))
		return
	}
	reply, err := wire.DecodeConnectionAccepted(r)
	if err != nil {
		a.tel.Warn("handshake: malformed ConnectionAccepted", zap.Error(err))
		return
	}
	if err := a.session.HandleConnectionAccepted(connID, reply); err != nil {
		a.tel.Info("handshake: rejected reply", zap.Error(err))
		return
	}

	a.tel.Info("connected", zap.Uint8("connection_id", connID))
	a.logic.SetJoiningPlayer(clientlogic.JoinRequest{
		RequestID: joinRequestID,
		Players:   []wire.JoinPlayerRequest{{LocalIndex: 0}},
	})
}

func (a *clientApp) handleInBand(data []byte) {
	commands, err := a.session.AcceptInbound(time.Now(), data[1:])
	if err != nil {
		a.tel.Info("in-band: dropped datagram", zap.Error(err))
		return
	}

	r := wire.NewReader(commands)
	for r.Remaining() > 0 {
		tag, err := r.U8()
		if err != nil {
			a.tel.Warn("in-band: truncated command stream", zap.Error(err))
			return
		}
		if err := a.dispatchCommand(wire.Tag(tag), r); err != nil {
			a.tel.Warn("in-band: command failed", zap.Uint8("tag", tag), zap.Error(err))
		}
	}
}

func (a *clientApp) dispatchCommand(tag wire.Tag, r *wire.Reader) error {
	switch tag {
	case wire.TagJoinGameAccepted:
		_, err := wire.DecodeJoinGameAccepted(r)
		return err
	case wire.TagDownloadGameStateResponse:
		resp, err := wire.DecodeDownloadGameStateResponse(r)
		if err != nil {
			return err
		}
		return a.logic.ReceiveDownloadStateResponse(resp)
	case wire.TagGameStep:
		resp, err := wire.DecodeGameStepResponse[demogame.Command](r, a.codec)
		if err != nil {
			return err
		}
		return a.logic.ReceiveGameStep(resp)
	case wire.TagBlobStreamChannelDown:
		return a.onBlobStreamDown(r)
	case wire.TagPong:
		_, err := wire.DecodePong(r)
		if err != nil {
			return err
		}
		a.pinger.ReceivePong(time.Now())
		return nil
	default:
		return wire.ErrUnknownTag(uint8(tag))
	}
}

func (a *clientApp) onBlobStreamDown(r *wire.Reader) error {
	subTag, err := r.U8()
	if err != nil {
		return err
	}
	switch wire.BlobSubTag(subTag) {
	case wire.BlobSubTagStartTransfer:
		cmd, err := wire.DecodeStartTransfer(r)
		if err != nil {
			return err
		}
		return a.logic.ReceiveBlobStreamStart(cmd)
	case wire.BlobSubTagSetChunk:
		cmd, err := wire.DecodeSetChunkData(r)
		if err != nil {
			return err
		}
		if err := a.logic.ReceiveBlobStreamChunk(cmd); err != nil {
			return err
		}
		if a.logic.BlobComplete() {
			if err := a.logic.FinishDownload(a.game); err != nil {
				return err
			}
			a.tel.Info("state download complete")
		}
		return nil
	default:
		return wire.ErrUnknownTag(subTag)
	}
}
