// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package enginetest

import (
	"bytes"
	"crypto/rand"
	"crypto/x509"
	"encoding/binary"
	"encoding/json"
	"encoding/pem"
	"errors"

	"github.com/jeremyhahn/go-nettls/pkg/engine"
)

// Wire framing: a 1-byte type and a 2-byte big-endian length prefix the
// payload of every record.
const (
	frameHeaderSize = 3
	maxFrameSize    = 1 << 14
)

// Record types of the toy protocol.
const (
	frameClientHello byte = iota + 1
	frameServerHello
	frameClientCert
	frameData
	frameAlert
	frameRehandshake
)

// Handshake phases. Rehandshakes re-enter the same machine: receiving a
// renegotiation signal rewinds hsPhase while the session stays
// established for data transfer.
const (
	hsDone int = iota
	hsSendHello
	hsAwaitClient
	hsAwaitServer
	hsSendCert
	hsAwaitCert
	hsEstablish
)

// clientHelloMsg opens a handshake. ResumeID asks the server to resume a
// cached session.
type clientHelloMsg struct {
	ServerNames []string `json:"server_names,omitempty"`
	ResumeID    []byte   `json:"resume_id,omitempty"`
}

// serverHelloMsg answers it. On resumption the chain is absent: the
// engine does not re-emit certificates for resumed sessions.
type serverHelloMsg struct {
	Chain       [][]byte `json:"chain,omitempty"`
	CertRequest bool     `json:"cert_request,omitempty"`
	Resumed     bool     `json:"resumed,omitempty"`
	SessionID   []byte   `json:"session_id"`
	Protocol    string   `json:"protocol"`
	Cipher      string   `json:"cipher"`
	KX          string   `json:"kx"`
	MAC         string   `json:"mac"`
	Compression string   `json:"compression"`
}

// certMsg carries a certificate chain; an empty chain means the client
// declined to present one.
type certMsg struct {
	Chain [][]byte `json:"chain"`
}

// sessionBlob is the engine's session serialization. Deliberately, the
// local certificate is not part of it: callers that need it across
// resumption carry it out of band.
type sessionBlob struct {
	ID          []byte   `json:"id"`
	PeerChain   [][]byte `json:"peer_chain,omitempty"`
	Protocol    string   `json:"protocol"`
	Cipher      string   `json:"cipher"`
	KX          string   `json:"kx"`
	MAC         string   `json:"mac"`
	Compression string   `json:"compression"`
}

// session is one side of a loopback TLS session.
type session struct {
	eng  *Engine
	role engine.Role

	pull engine.PullFunc
	push engine.PushFunc

	priority *priority
	creds    *certCredentials
	dh       *dhParams
	sni      []string
	certReq  engine.CertificateRequest
	cache    engine.CacheCallbacks

	// Wire state. rbuf accumulates raw bytes until a frame completes;
	// wpending holds staged frames not yet pushed.
	rbuf     bytes.Buffer
	wpending []byte
	lastDir  engine.Direction

	// Record-layer state.
	plain        bytes.Buffer
	lastAlert    engine.Alert
	peerClosed   bool
	closeStaged  bool
	alertStaged  bool
	rehsStaged   bool
	pendingWrite int

	// Handshake and session state.
	hsPhase     int
	established bool
	resumed     bool
	sessionID   []byte
	resume      *sessionBlob // loaded by SetSessionData
	pendingHs   []byte       // buffered handshake frame payload
	pendingTyp  byte
	peerChain   [][]byte
	ourChain    [][]byte
	protocol    string
	cipherName  string
	kxName      string
	macName     string
	compression string
	closed      bool
}

func (s *session) SetTransport(pull engine.PullFunc, push engine.PushFunc) {
	s.pull = pull
	s.push = push
}

func (s *session) SetPriority(p engine.Priority) error {
	pr, ok := p.(*priority)
	if !ok {
		return engine.NewError(engine.CodeInvalidRequest)
	}
	s.priority = pr
	return nil
}

func (s *session) SetCredentials(c engine.CertCredentials) error {
	cc, ok := c.(*certCredentials)
	if !ok {
		return engine.NewError(engine.CodeInvalidRequest)
	}
	s.creds = cc
	return nil
}

func (s *session) SetDHParams(dh engine.DHParams) error {
	d, ok := dh.(*dhParams)
	if !ok {
		return engine.NewError(engine.CodeInvalidRequest)
	}
	s.dh = d
	return nil
}

func (s *session) SetServerName(name string) error {
	s.sni = []string{name}
	return nil
}

func (s *session) SetCertificateRequest(req engine.CertificateRequest) {
	s.certReq = req
}

func (s *session) SetCacheCallbacks(cb engine.CacheCallbacks) {
	s.cache = cb
}

func (s *session) SetSessionData(data []byte) error {
	var blob sessionBlob
	if err := json.Unmarshal(data, &blob); err != nil || len(blob.ID) == 0 {
		return engine.NewError(engine.CodeInvalidSession)
	}
	s.resume = &blob
	return nil
}

func (s *session) Direction() engine.Direction { return s.lastDir }
func (s *session) LastAlert() engine.Alert     { return s.lastAlert }
func (s *session) Pending() uint               { return uint(s.plain.Len()) }

// stage queues one frame for transmission.
func (s *session) stage(typ byte, payload []byte) {
	hdr := make([]byte, frameHeaderSize)
	hdr[0] = typ
	binary.BigEndian.PutUint16(hdr[1:], uint16(len(payload)))
	s.wpending = append(s.wpending, hdr...)
	s.wpending = append(s.wpending, payload...)
}

// flush pushes staged bytes until done or the transport blocks.
func (s *session) flush() error {
	for len(s.wpending) > 0 {
		n, err := s.push(s.wpending)
		if err != nil {
			return s.transportErr(err, engine.DirWrite)
		}
		s.wpending = s.wpending[n:]
	}
	return nil
}

// transportErr maps a pull/push failure onto engine codes, recording the
// blocked direction for Again.
func (s *session) transportErr(err error, dir engine.Direction) error {
	switch {
	case errors.Is(err, engine.ErrTransportAgain):
		s.lastDir = dir
		return engine.NewError(engine.CodeAgain)
	case errors.Is(err, engine.ErrTransportInterrupted):
		return engine.NewError(engine.CodeInterrupted)
	}
	if dir == engine.DirWrite {
		return engine.NewError(engine.CodePushError)
	}
	return engine.NewError(engine.CodePullError)
}

// fill pulls more raw bytes into rbuf.
func (s *session) fill() error {
	buf := make([]byte, 512)
	n, err := s.pull(buf)
	if err != nil {
		return s.transportErr(err, engine.DirRead)
	}
	if n == 0 {
		return engine.NewError(engine.CodePrematureTermination)
	}
	s.rbuf.Write(buf[:n])
	return nil
}

// readFrame returns the next complete frame, pulling as needed.
func (s *session) readFrame() (byte, []byte, error) {
	for s.rbuf.Len() < frameHeaderSize {
		if err := s.fill(); err != nil {
			return 0, nil, err
		}
	}
	hdr := s.rbuf.Bytes()[:frameHeaderSize]
	length := int(binary.BigEndian.Uint16(hdr[1:]))
	if length > maxFrameSize {
		return 0, nil, engine.NewError(engine.CodeDecryptionFailed)
	}
	for s.rbuf.Len() < frameHeaderSize+length {
		if err := s.fill(); err != nil {
			return 0, nil, err
		}
	}
	frame := make([]byte, frameHeaderSize+length)
	s.rbuf.Read(frame)
	return frame[0], frame[frameHeaderSize:], nil
}

// nextHandshakeFrame returns the next handshake frame, consuming a
// buffered one first and stashing data records that arrive interleaved.
func (s *session) nextHandshakeFrame() (byte, []byte, error) {
	if s.pendingTyp != 0 {
		typ, payload := s.pendingTyp, s.pendingHs
		s.pendingTyp, s.pendingHs = 0, nil
		return typ, payload, nil
	}
	for {
		typ, payload, err := s.readFrame()
		if err != nil {
			return 0, nil, err
		}
		switch typ {
		case frameData:
			s.plain.Write(payload)
		case frameAlert:
			if len(payload) == 2 {
				s.lastAlert = engine.Alert(payload[1])
			}
			if len(payload) == 2 && engine.AlertLevel(payload[0]) == engine.AlertFatal {
				return 0, nil, engine.NewError(engine.CodeFatalAlertReceived)
			}
			return 0, nil, engine.NewError(engine.CodeWarningAlertReceived)
		default:
			return typ, payload, nil
		}
	}
}

// Handshake drives the phase machine until established or suspended.
func (s *session) Handshake() error {
	if s.pull == nil || s.push == nil || s.priority == nil || s.creds == nil {
		return engine.NewError(engine.CodeInvalidRequest)
	}
	if s.hsPhase == hsDone {
		return nil
	}
	if s.role == engine.RoleClient {
		return s.clientHandshake()
	}
	return s.serverHandshake()
}

func (s *session) clientHandshake() error {
	for {
		switch s.hsPhase {
		case hsDone:
			return nil

		case hsSendHello:
			hello := clientHelloMsg{ServerNames: s.sni}
			if s.resume != nil {
				hello.ResumeID = s.resume.ID
			}
			payload, _ := json.Marshal(&hello)
			s.stage(frameClientHello, payload)
			s.hsPhase = hsAwaitServer

		case hsAwaitServer:
			if err := s.flush(); err != nil {
				return err
			}
			typ, payload, err := s.nextHandshakeFrame()
			if err != nil {
				return err
			}
			if typ != frameServerHello {
				return engine.NewError(engine.CodeUnexpectedPacket)
			}
			var sh serverHelloMsg
			if err := json.Unmarshal(payload, &sh); err != nil {
				return engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.sessionID = sh.SessionID
			s.protocol = sh.Protocol
			s.cipherName = sh.Cipher
			s.kxName = sh.KX
			s.macName = sh.MAC
			s.compression = sh.Compression
			switch {
			case sh.Resumed:
				s.resumed = true
				if s.resume != nil {
					s.peerChain = s.resume.PeerChain
				}
				s.hsPhase = hsEstablish
			case sh.CertRequest:
				s.peerChain = sh.Chain
				s.hsPhase = hsSendCert
			default:
				s.peerChain = sh.Chain
				s.hsPhase = hsEstablish
			}

		case hsSendCert:
			var chain [][]byte
			if len(s.creds.identities) > 0 {
				chain = s.creds.identities[0].chain
			}
			s.ourChain = chain
			payload, _ := json.Marshal(&certMsg{Chain: chain})
			s.stage(frameClientCert, payload)
			s.hsPhase = hsEstablish

		case hsEstablish:
			if err := s.flush(); err != nil {
				return err
			}
			s.established = true
			s.hsPhase = hsDone
			s.resume = nil
			return nil
		}
	}
}

func (s *session) serverHandshake() error {
	for {
		switch s.hsPhase {
		case hsDone:
			return nil

		case hsAwaitClient:
			typ, payload, err := s.nextHandshakeFrame()
			if err != nil {
				return err
			}
			if typ == frameRehandshake {
				// Stray echo of our own request kind; ignore.
				continue
			}
			if typ != frameClientHello {
				return engine.NewError(engine.CodeUnexpectedPacket)
			}
			var ch clientHelloMsg
			if err := json.Unmarshal(payload, &ch); err != nil {
				return engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.sni = ch.ServerNames

			s.resumed = false
			if len(ch.ResumeID) > 0 && s.cache.Retrieve != nil {
				if data, err := s.cache.Retrieve(ch.ResumeID); err == nil {
					var blob sessionBlob
					if json.Unmarshal(data, &blob) == nil && len(blob.ID) > 0 {
						s.restoreBlob(&blob)
						s.resumed = true
					}
				}
			}
			if !s.resumed {
				if len(s.creds.identities) == 0 {
					return engine.NewError(engine.CodeInsufficientCredentials)
				}
				s.ourChain = s.creds.identities[0].chain
				s.sessionID = randomID()
				s.negotiate()
			}

			sh := serverHelloMsg{
				Resumed:     s.resumed,
				SessionID:   s.sessionID,
				Protocol:    s.protocol,
				Cipher:      s.cipherName,
				KX:          s.kxName,
				MAC:         s.macName,
				Compression: s.compression,
			}
			if !s.resumed {
				sh.Chain = s.ourChain
				sh.CertRequest = s.certReq != engine.CertIgnore
			}
			payload, _ = json.Marshal(&sh)
			s.stage(frameServerHello, payload)
			if !s.resumed && s.certReq != engine.CertIgnore {
				s.hsPhase = hsAwaitCert
			} else {
				s.hsPhase = hsEstablish
			}

		case hsAwaitCert:
			if err := s.flush(); err != nil {
				return err
			}
			typ, payload, err := s.nextHandshakeFrame()
			if err != nil {
				return err
			}
			if typ != frameClientCert {
				return engine.NewError(engine.CodeUnexpectedPacket)
			}
			var cm certMsg
			if err := json.Unmarshal(payload, &cm); err != nil {
				return engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.peerChain = cm.Chain
			s.hsPhase = hsEstablish

		case hsEstablish:
			if err := s.flush(); err != nil {
				return err
			}
			s.established = true
			s.hsPhase = hsDone
			if !s.resumed && s.cache.Store != nil {
				if data, err := s.sessionData(); err == nil {
					_ = s.cache.Store(s.sessionID, data)
				}
			}
			return nil
		}
	}
}

// negotiate fixes the session parameters for a full handshake.
func (s *session) negotiate() {
	s.protocol = "TLS1.3"
	s.cipherName = "AES-256-GCM"
	s.kxName = "ECDHE-RSA"
	if s.dh != nil {
		s.kxName = "DHE-RSA"
	}
	s.macName = "AEAD"
	s.compression = "NULL"
}

// restoreBlob reinstates serialized session state. The local chain is
// deliberately not restored: it is not part of the blob.
func (s *session) restoreBlob(blob *sessionBlob) {
	s.sessionID = blob.ID
	s.peerChain = blob.PeerChain
	s.protocol = blob.Protocol
	s.cipherName = blob.Cipher
	s.kxName = blob.KX
	s.macName = blob.MAC
	s.compression = blob.Compression
	s.ourChain = nil
}

// Rehandshake sends a renegotiation request: a fresh hello when this
// side is the client, a hello-request record when it is the server.
func (s *session) Rehandshake() error {
	if !s.established {
		return engine.NewError(engine.CodeInvalidRequest)
	}
	if !s.rehsStaged {
		if s.role == engine.RoleClient {
			payload, _ := json.Marshal(&clientHelloMsg{ServerNames: s.sni})
			s.stage(frameClientHello, payload)
			s.hsPhase = hsAwaitServer
		} else {
			s.stage(frameRehandshake, nil)
		}
		s.rehsStaged = true
	}
	if err := s.flush(); err != nil {
		return err
	}
	s.rehsStaged = false
	return nil
}

// Read returns buffered plaintext, then decodes records. Handshake
// records surface as CodeRehandshake after being buffered for the next
// Handshake call.
func (s *session) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.plain.Len() > 0 {
		return s.plain.Read(p)
	}
	if s.peerClosed {
		return 0, nil
	}
	for {
		typ, payload, err := s.readFrame()
		if err != nil {
			return 0, err
		}
		switch typ {
		case frameData:
			s.plain.Write(payload)
			return s.plain.Read(p)

		case frameAlert:
			if len(payload) != 2 {
				return 0, engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.lastAlert = engine.Alert(payload[1])
			if s.lastAlert == engine.AlertCloseNotify {
				s.peerClosed = true
				return 0, nil
			}
			if engine.AlertLevel(payload[0]) == engine.AlertFatal {
				return 0, engine.NewError(engine.CodeFatalAlertReceived)
			}
			return 0, engine.NewError(engine.CodeWarningAlertReceived)

		case frameClientHello:
			if s.role != engine.RoleServer {
				return 0, engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.pendingTyp = typ
			s.pendingHs = payload
			s.hsPhase = hsAwaitClient
			return 0, engine.NewError(engine.CodeRehandshake)

		case frameServerHello:
			if s.role != engine.RoleClient {
				return 0, engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.pendingTyp = typ
			s.pendingHs = payload
			s.hsPhase = hsAwaitServer
			return 0, engine.NewError(engine.CodeRehandshake)

		case frameRehandshake:
			if s.role != engine.RoleClient {
				return 0, engine.NewError(engine.CodeUnexpectedPacket)
			}
			s.hsPhase = hsSendHello
			return 0, engine.NewError(engine.CodeRehandshake)

		default:
			return 0, engine.NewError(engine.CodeUnexpectedPacket)
		}
	}
}

// Write stages one data record and pushes it. After a suspension the
// caller retries with the same data; the staged record is then flushed
// and its original length reported.
func (s *session) Write(p []byte) (int, error) {
	if !s.established {
		return 0, engine.NewError(engine.CodeInvalidRequest)
	}
	if s.pendingWrite > 0 {
		if err := s.flush(); err != nil {
			return 0, err
		}
		n := s.pendingWrite
		s.pendingWrite = 0
		return n, nil
	}
	n := len(p)
	if n > maxFrameSize {
		n = maxFrameSize
	}
	s.stage(frameData, p[:n])
	s.pendingWrite = n
	if err := s.flush(); err != nil {
		return 0, err
	}
	s.pendingWrite = 0
	return n, nil
}

// Bye stages close-notify and flushes it. Both directions map onto the
// same alert on the wire.
func (s *session) Bye(how engine.CloseHow) error {
	if !s.closeStaged {
		s.stage(frameAlert, []byte{byte(engine.AlertWarning), byte(engine.AlertCloseNotify)})
		s.closeStaged = true
	}
	return s.flush()
}

// SendAlert stages an arbitrary alert. Sending no_renegotiation also
// discards a buffered renegotiation request, answering it.
func (s *session) SendAlert(level engine.AlertLevel, alert engine.Alert) error {
	if !s.alertStaged {
		s.stage(frameAlert, []byte{byte(level), byte(alert)})
		s.alertStaged = true
		if alert == engine.AlertNoRenegotiation {
			s.pendingTyp, s.pendingHs = 0, nil
			s.hsPhase = hsDone
		}
	}
	if err := s.flush(); err != nil {
		return err
	}
	s.alertStaged = false
	return nil
}

func (s *session) SessionID() ([]byte, error) {
	if !s.established {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	return s.sessionID, nil
}

func (s *session) SessionData() ([]byte, error) {
	if !s.established {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	return s.sessionData()
}

func (s *session) sessionData() ([]byte, error) {
	return json.Marshal(&sessionBlob{
		ID:          s.sessionID,
		PeerChain:   s.peerChain,
		Protocol:    s.protocol,
		Cipher:      s.cipherName,
		KX:          s.kxName,
		MAC:         s.macName,
		Compression: s.compression,
	})
}

func (s *session) ServerName(index int) (string, error) {
	if index < 0 || index >= len(s.sni) || s.sni[index] == "" {
		return "", engine.NewError(engine.CodeRequestedDataNotAvailable)
	}
	return s.sni[index], nil
}

func (s *session) OurCertificate() ([]byte, error) {
	if !s.established {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	if len(s.ourChain) == 0 {
		return nil, nil
	}
	return s.ourChain[0], nil
}

func (s *session) PeerCertificates() ([][]byte, error) {
	if !s.established {
		return nil, engine.NewError(engine.CodeInvalidRequest)
	}
	return s.peerChain, nil
}

// VerifyPeers validates the peer chain against the session credentials'
// trust anchors and CRLs. Flag bit 0 marks an invalid chain, bit 1 a
// revoked certificate.
func (s *session) VerifyPeers() (uint, error) {
	if len(s.peerChain) == 0 {
		return 0, engine.NewError(engine.CodeNoCertificateFound)
	}
	leaf, err := x509.ParseCertificate(s.peerChain[0])
	if err != nil {
		return 1, nil
	}

	roots := x509.NewCertPool()
	for _, der := range s.creds.trust {
		if cert, err := x509.ParseCertificate(der); err == nil {
			roots.AddCert(cert)
		}
	}
	inters := x509.NewCertPool()
	for _, der := range s.peerChain[1:] {
		if cert, err := x509.ParseCertificate(der); err == nil {
			inters.AddCert(cert)
		}
	}

	var flags uint
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: inters,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		flags |= 1
	}
	for _, der := range s.creds.crls {
		crl, err := x509.ParseRevocationList(der)
		if err != nil {
			continue
		}
		for _, entry := range crl.RevokedCertificateEntries {
			if entry.SerialNumber.Cmp(leaf.SerialNumber) == 0 {
				flags |= 2
			}
		}
	}
	return flags, nil
}

func (s *session) Cipher() string          { return s.cipherName }
func (s *session) KX() string              { return s.kxName }
func (s *session) MAC() string             { return s.macName }
func (s *session) Compression() string     { return s.compression }
func (s *session) CertificateType() string { return "X.509" }
func (s *session) Protocol() string        { return s.protocol }

func (s *session) Close() error {
	s.closed = true
	return nil
}

// randomID allocates a 16-byte session identifier.
func randomID() []byte {
	id := make([]byte, 16)
	_, _ = rand.Read(id)
	return id
}

// decodePEMChain extracts the DER certificates from a PEM bundle.
func decodePEMChain(chainPEM []byte) ([][]byte, error) {
	var chain [][]byte
	rest := chainPEM
	for {
		var blk *pem.Block
		blk, rest = pem.Decode(rest)
		if blk == nil {
			break
		}
		if blk.Type == "CERTIFICATE" || blk.Type == "X509 CERTIFICATE" {
			chain = append(chain, blk.Bytes)
		}
	}
	if len(chain) == 0 {
		return nil, engine.NewError(engine.CodeCertificateError)
	}
	return chain, nil
}

// decodePEMKey parses the first private-key block of a PEM blob. DSA
// keys are accepted without a parsed form: the standard library cannot
// decode them, and the loopback engine only needs the key for the
// leaf-match check.
func decodePEMKey(keyPEM []byte) (any, error) {
	rest := keyPEM
	for {
		var blk *pem.Block
		blk, rest = pem.Decode(rest)
		if blk == nil {
			return nil, engine.NewError(engine.CodeCertificateError)
		}
		switch blk.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(blk.Bytes)
			if err != nil {
				return nil, engine.NewError(engine.CodeCertificateError)
			}
			return key, nil
		case "EC PRIVATE KEY":
			key, err := x509.ParseECPrivateKey(blk.Bytes)
			if err != nil {
				return nil, engine.NewError(engine.CodeCertificateError)
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(blk.Bytes)
			if err != nil {
				return nil, engine.NewError(engine.CodeCertificateError)
			}
			return key, nil
		case "DSA PRIVATE KEY":
			return nil, nil
		}
	}
}
