package mumbleproto

// Version is exchanged by both peers at the start of a connection.
type Version struct {
	VersionV1 *uint32
	Release   *string
	OS        *string
	OSVersion *string
	VersionV2 *uint64
}

func (*Version) Type() MessageType { return TypeVersion }

func (m *Version) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.VersionV1)
	e.string(2, m.Release)
	e.string(3, m.OS)
	e.string(4, m.OSVersion)
	e.uint64(5, m.VersionV2)
	return e
}

func (m *Version) Unmarshal(b []byte) error {
	*m = Version{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.VersionV1 = f.uint32()
		case 2:
			m.Release = f.string()
		case 3:
			m.OS = f.string()
		case 4:
			m.OSVersion = f.string()
		case 5:
			m.VersionV2 = f.uint64()
		}
		return nil
	})
}

// UDPTunnel carries a voice datagram over the control connection.
type UDPTunnel struct {
	Packet []byte
}

func (*UDPTunnel) Type() MessageType { return TypeUDPTunnel }

func (m *UDPTunnel) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.bytes(1, m.Packet)
	return e
}

func (m *UDPTunnel) Unmarshal(b []byte) error {
	*m = UDPTunnel{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.Packet = f.bytes()
		}
		return nil
	})
}

const ClientTypeRegular int32 = 0

type Authenticate struct {
	Username     *string
	Password     *string
	Tokens       []string
	CeltVersions []int32
	Opus         *bool
	ClientType   *int32
}

func (*Authenticate) Type() MessageType { return TypeAuthenticate }

func (m *Authenticate) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.string(1, m.Username)
	e.string(2, m.Password)
	e.strings(3, m.Tokens)
	e.int32s(4, m.CeltVersions)
	e.bool(5, m.Opus)
	e.int32(6, m.ClientType)
	return e
}

func (m *Authenticate) Unmarshal(b []byte) error {
	*m = Authenticate{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Username = f.string()
		case 2:
			m.Password = f.string()
		case 3:
			m.Tokens = append(m.Tokens, *f.string())
		case 4:
			m.CeltVersions, err = f.appendInt32s(m.CeltVersions)
		case 5:
			m.Opus = f.bool()
		case 6:
			m.ClientType = f.int32()
		}
		return err
	})
}

// Ping is the TCP keepalive. The client fills in its crypt and latency
// statistics; the server echoes the timestamp.
type Ping struct {
	Timestamp  *uint64
	Good       *uint32
	Late       *uint32
	Lost       *uint32
	Resync     *uint32
	UDPPackets *uint32
	TCPPackets *uint32
	UDPPingAvg *float32
	UDPPingVar *float32
	TCPPingAvg *float32
	TCPPingVar *float32
}

func (*Ping) Type() MessageType { return TypePing }

func (m *Ping) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint64(1, m.Timestamp)
	e.uint32(2, m.Good)
	e.uint32(3, m.Late)
	e.uint32(4, m.Lost)
	e.uint32(5, m.Resync)
	e.uint32(6, m.UDPPackets)
	e.uint32(7, m.TCPPackets)
	e.float(8, m.UDPPingAvg)
	e.float(9, m.UDPPingVar)
	e.float(10, m.TCPPingAvg)
	e.float(11, m.TCPPingVar)
	return e
}

func (m *Ping) Unmarshal(b []byte) error {
	*m = Ping{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Timestamp = f.uint64()
		case 2:
			m.Good = f.uint32()
		case 3:
			m.Late = f.uint32()
		case 4:
			m.Lost = f.uint32()
		case 5:
			m.Resync = f.uint32()
		case 6:
			m.UDPPackets = f.uint32()
		case 7:
			m.TCPPackets = f.uint32()
		case 8:
			m.UDPPingAvg = f.float()
		case 9:
			m.UDPPingVar = f.float()
		case 10:
			m.TCPPingAvg = f.float()
		case 11:
			m.TCPPingVar = f.float()
		}
		return nil
	})
}

type RejectType uint32

const (
	RejectNone RejectType = iota
	RejectWrongVersion
	RejectInvalidUsername
	RejectWrongUserPW
	RejectWrongServerPW
	RejectUsernameInUse
	RejectServerFull
	RejectNoCertificate
	RejectAuthenticatorFail
	RejectNoNewConnections
)

var rejectNames = [...]string{
	"None",
	"WrongVersion",
	"InvalidUsername",
	"WrongUserPW",
	"WrongServerPW",
	"UsernameInUse",
	"ServerFull",
	"NoCertificate",
	"AuthenticatorFail",
	"NoNewConnections",
}

func (r RejectType) String() string {
	if int(r) < len(rejectNames) {
		return rejectNames[r]
	}
	return "Unknown"
}

type Reject struct {
	RejectType *RejectType
	Reason     *string
}

func (*Reject) Type() MessageType { return TypeReject }

func (m *Reject) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	if m.RejectType != nil {
		e.uint32(1, Ptr(uint32(*m.RejectType)))
	}
	e.string(2, m.Reason)
	return e
}

func (m *Reject) Unmarshal(b []byte) error {
	*m = Reject{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.RejectType = Ptr(RejectType(f.varint))
		case 2:
			m.Reason = f.string()
		}
		return nil
	})
}

// ServerSync ends the initial state burst and assigns the local session.
type ServerSync struct {
	Session      *uint32
	MaxBandwidth *uint32
	WelcomeText  *string
	Permissions  *uint64
}

func (*ServerSync) Type() MessageType { return TypeServerSync }

func (m *ServerSync) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.Session)
	e.uint32(2, m.MaxBandwidth)
	e.string(3, m.WelcomeText)
	e.uint64(4, m.Permissions)
	return e
}

func (m *ServerSync) Unmarshal(b []byte) error {
	*m = ServerSync{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Session = f.uint32()
		case 2:
			m.MaxBandwidth = f.uint32()
		case 3:
			m.WelcomeText = f.string()
		case 4:
			m.Permissions = f.uint64()
		}
		return nil
	})
}

type ChannelRemove struct {
	ChannelID *uint32
}

func (*ChannelRemove) Type() MessageType { return TypeChannelRemove }

func (m *ChannelRemove) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.ChannelID)
	return e
}

func (m *ChannelRemove) Unmarshal(b []byte) error {
	*m = ChannelRemove{}
	return walk(b, func(f field) error {
		if f.num == 1 {
			m.ChannelID = f.uint32()
		}
		return nil
	})
}

// ChannelState is a sparse update: only fields present on the wire are set.
type ChannelState struct {
	ChannelID         *uint32
	Parent            *uint32
	Name              *string
	Links             []uint32
	Description       *string
	LinksAdd          []uint32
	LinksRemove       []uint32
	Temporary         *bool
	Position          *int32
	DescriptionHash   []byte
	MaxUsers          *uint32
	IsEnterRestricted *bool
	CanEnter          *bool
}

func (*ChannelState) Type() MessageType { return TypeChannelState }

func (m *ChannelState) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.ChannelID)
	e.uint32(2, m.Parent)
	e.string(3, m.Name)
	e.uint32s(4, m.Links)
	e.string(5, m.Description)
	e.uint32s(6, m.LinksAdd)
	e.uint32s(7, m.LinksRemove)
	e.bool(8, m.Temporary)
	e.int32(9, m.Position)
	e.bytes(10, m.DescriptionHash)
	e.uint32(11, m.MaxUsers)
	e.bool(12, m.IsEnterRestricted)
	e.bool(13, m.CanEnter)
	return e
}

func (m *ChannelState) Unmarshal(b []byte) error {
	*m = ChannelState{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.ChannelID = f.uint32()
		case 2:
			m.Parent = f.uint32()
		case 3:
			m.Name = f.string()
		case 4:
			m.Links, err = f.appendUint32s(m.Links)
		case 5:
			m.Description = f.string()
		case 6:
			m.LinksAdd, err = f.appendUint32s(m.LinksAdd)
		case 7:
			m.LinksRemove, err = f.appendUint32s(m.LinksRemove)
		case 8:
			m.Temporary = f.bool()
		case 9:
			m.Position = f.int32()
		case 10:
			m.DescriptionHash = f.bytes()
		case 11:
			m.MaxUsers = f.uint32()
		case 12:
			m.IsEnterRestricted = f.bool()
		case 13:
			m.CanEnter = f.bool()
		}
		return err
	})
}

type UserRemove struct {
	Session *uint32
	Actor   *uint32
	Reason  *string
	Ban     *bool
}

func (*UserRemove) Type() MessageType { return TypeUserRemove }

func (m *UserRemove) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.Session)
	e.uint32(2, m.Actor)
	e.string(3, m.Reason)
	e.bool(4, m.Ban)
	return e
}

func (m *UserRemove) Unmarshal(b []byte) error {
	*m = UserRemove{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Session = f.uint32()
		case 2:
			m.Actor = f.uint32()
		case 3:
			m.Reason = f.string()
		case 4:
			m.Ban = f.bool()
		}
		return nil
	})
}

// UserState is a sparse update: only fields present on the wire are set.
type UserState struct {
	Session                *uint32
	Actor                  *uint32
	Name                   *string
	UserID                 *uint32
	ChannelID              *uint32
	Mute                   *bool
	Deaf                   *bool
	Suppress               *bool
	SelfMute               *bool
	SelfDeaf               *bool
	Texture                []byte
	PluginContext          []byte
	PluginIdentity         *string
	Comment                *string
	Hash                   *string
	CommentHash            []byte
	TextureHash            []byte
	PrioritySpeaker        *bool
	Recording              *bool
	TemporaryAccessTokens  []string
	ListeningChannelAdd    []uint32
	ListeningChannelRemove []uint32
}

func (*UserState) Type() MessageType { return TypeUserState }

func (m *UserState) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.Session)
	e.uint32(2, m.Actor)
	e.string(3, m.Name)
	e.uint32(4, m.UserID)
	e.uint32(5, m.ChannelID)
	e.bool(6, m.Mute)
	e.bool(7, m.Deaf)
	e.bool(8, m.Suppress)
	e.bool(9, m.SelfMute)
	e.bool(10, m.SelfDeaf)
	e.bytes(11, m.Texture)
	e.bytes(12, m.PluginContext)
	e.string(13, m.PluginIdentity)
	e.string(14, m.Comment)
	e.string(15, m.Hash)
	e.bytes(16, m.CommentHash)
	e.bytes(17, m.TextureHash)
	e.bool(18, m.PrioritySpeaker)
	e.bool(19, m.Recording)
	e.strings(20, m.TemporaryAccessTokens)
	e.uint32s(21, m.ListeningChannelAdd)
	e.uint32s(22, m.ListeningChannelRemove)
	return e
}

func (m *UserState) Unmarshal(b []byte) error {
	*m = UserState{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Session = f.uint32()
		case 2:
			m.Actor = f.uint32()
		case 3:
			m.Name = f.string()
		case 4:
			m.UserID = f.uint32()
		case 5:
			m.ChannelID = f.uint32()
		case 6:
			m.Mute = f.bool()
		case 7:
			m.Deaf = f.bool()
		case 8:
			m.Suppress = f.bool()
		case 9:
			m.SelfMute = f.bool()
		case 10:
			m.SelfDeaf = f.bool()
		case 11:
			m.Texture = f.bytes()
		case 12:
			m.PluginContext = f.bytes()
		case 13:
			m.PluginIdentity = f.string()
		case 14:
			m.Comment = f.string()
		case 15:
			m.Hash = f.string()
		case 16:
			m.CommentHash = f.bytes()
		case 17:
			m.TextureHash = f.bytes()
		case 18:
			m.PrioritySpeaker = f.bool()
		case 19:
			m.Recording = f.bool()
		case 20:
			m.TemporaryAccessTokens = append(m.TemporaryAccessTokens, *f.string())
		case 21:
			m.ListeningChannelAdd, err = f.appendUint32s(m.ListeningChannelAdd)
		case 22:
			m.ListeningChannelRemove, err = f.appendUint32s(m.ListeningChannelRemove)
		}
		return err
	})
}

type TextMessage struct {
	Actor      *uint32
	Sessions   []uint32
	ChannelIDs []uint32
	TreeIDs    []uint32
	Message    *string
}

func (*TextMessage) Type() MessageType { return TypeTextMessage }

func (m *TextMessage) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.Actor)
	e.uint32s(2, m.Sessions)
	e.uint32s(3, m.ChannelIDs)
	e.uint32s(4, m.TreeIDs)
	e.string(5, m.Message)
	return e
}

func (m *TextMessage) Unmarshal(b []byte) error {
	*m = TextMessage{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Actor = f.uint32()
		case 2:
			m.Sessions, err = f.appendUint32s(m.Sessions)
		case 3:
			m.ChannelIDs, err = f.appendUint32s(m.ChannelIDs)
		case 4:
			m.TreeIDs, err = f.appendUint32s(m.TreeIDs)
		case 5:
			m.Message = f.string()
		}
		return err
	})
}

type DenyType uint32

const (
	DenyText DenyType = iota
	DenyPermission
	DenySuperUser
	DenyChannelName
	DenyTextTooLong
	DenyH9K
	DenyTemporaryChannel
	DenyMissingCertificate
	DenyUserName
	DenyChannelFull
	DenyNestingLimit
	DenyChannelCountLimit
	DenyChannelListenerLimit
	DenyUserListenerLimit
)

type PermissionDenied struct {
	Permission *uint32
	ChannelID  *uint32
	Session    *uint32
	Reason     *string
	DenyType   *DenyType
	Name       *string
}

func (*PermissionDenied) Type() MessageType { return TypePermissionDenied }

func (m *PermissionDenied) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.Permission)
	e.uint32(2, m.ChannelID)
	e.uint32(3, m.Session)
	e.string(4, m.Reason)
	if m.DenyType != nil {
		e.uint32(5, Ptr(uint32(*m.DenyType)))
	}
	e.string(6, m.Name)
	return e
}

func (m *PermissionDenied) Unmarshal(b []byte) error {
	*m = PermissionDenied{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Permission = f.uint32()
		case 2:
			m.ChannelID = f.uint32()
		case 3:
			m.Session = f.uint32()
		case 4:
			m.Reason = f.string()
		case 5:
			m.DenyType = Ptr(DenyType(f.varint))
		case 6:
			m.Name = f.string()
		}
		return nil
	})
}

type QueryUsers struct {
	IDs   []uint32
	Names []string
}

func (*QueryUsers) Type() MessageType { return TypeQueryUsers }

func (m *QueryUsers) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32s(1, m.IDs)
	e.strings(2, m.Names)
	return e
}

func (m *QueryUsers) Unmarshal(b []byte) error {
	*m = QueryUsers{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.IDs, err = f.appendUint32s(m.IDs)
		case 2:
			m.Names = append(m.Names, *f.string())
		}
		return err
	})
}

// CryptSetup carries a full key exchange when all three fields are set,
// and a nonce resync otherwise.
type CryptSetup struct {
	Key         []byte
	ClientNonce []byte
	ServerNonce []byte
}

func (*CryptSetup) Type() MessageType { return TypeCryptSetup }

func (m *CryptSetup) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.bytes(1, m.Key)
	e.bytes(2, m.ClientNonce)
	e.bytes(3, m.ServerNonce)
	return e
}

func (m *CryptSetup) Unmarshal(b []byte) error {
	*m = CryptSetup{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Key = f.bytes()
		case 2:
			m.ClientNonce = f.bytes()
		case 3:
			m.ServerNonce = f.bytes()
		}
		return nil
	})
}

type ContextAction struct {
	Session   *uint32
	ChannelID *uint32
	Action    *string
}

func (*ContextAction) Type() MessageType { return TypeContextAction }

func (m *ContextAction) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.Session)
	e.uint32(2, m.ChannelID)
	e.string(3, m.Action)
	return e
}

func (m *ContextAction) Unmarshal(b []byte) error {
	*m = ContextAction{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Session = f.uint32()
		case 2:
			m.ChannelID = f.uint32()
		case 3:
			m.Action = f.string()
		}
		return nil
	})
}

type VoiceTargetEntry struct {
	Sessions  []uint32
	ChannelID *uint32
	Group     *string
	Links     *bool
	Children  *bool
}

func (t *VoiceTargetEntry) appendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32s(1, t.Sessions)
	e.uint32(2, t.ChannelID)
	e.string(3, t.Group)
	e.bool(4, t.Links)
	e.bool(5, t.Children)
	return e
}

func (t *VoiceTargetEntry) unmarshal(b []byte) error {
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			t.Sessions, err = f.appendUint32s(t.Sessions)
		case 2:
			t.ChannelID = f.uint32()
		case 3:
			t.Group = f.string()
		case 4:
			t.Links = f.bool()
		case 5:
			t.Children = f.bool()
		}
		return err
	})
}

// VoiceTarget registers a whisper target id (1..30) on the server.
type VoiceTarget struct {
	ID      *uint32
	Targets []VoiceTargetEntry
}

func (*VoiceTarget) Type() MessageType { return TypeVoiceTarget }

func (m *VoiceTarget) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.ID)
	for i := range m.Targets {
		e.bytes(2, m.Targets[i].appendMarshal([]byte{}))
	}
	return e
}

func (m *VoiceTarget) Unmarshal(b []byte) error {
	*m = VoiceTarget{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ID = f.uint32()
		case 2:
			var t VoiceTargetEntry
			if err := t.unmarshal(f.data); err != nil {
				return err
			}
			m.Targets = append(m.Targets, t)
		}
		return nil
	})
}

type PermissionQuery struct {
	ChannelID   *uint32
	Permissions *uint32
	Flush       *bool
}

func (*PermissionQuery) Type() MessageType { return TypePermissionQuery }

func (m *PermissionQuery) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.ChannelID)
	e.uint32(2, m.Permissions)
	e.bool(3, m.Flush)
	return e
}

func (m *PermissionQuery) Unmarshal(b []byte) error {
	*m = PermissionQuery{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.ChannelID = f.uint32()
		case 2:
			m.Permissions = f.uint32()
		case 3:
			m.Flush = f.bool()
		}
		return nil
	})
}

type CodecVersion struct {
	Alpha       *int32
	Beta        *int32
	PreferAlpha *bool
	Opus        *bool
}

func (*CodecVersion) Type() MessageType { return TypeCodecVersion }

func (m *CodecVersion) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.int32(1, m.Alpha)
	e.int32(2, m.Beta)
	e.bool(3, m.PreferAlpha)
	e.bool(4, m.Opus)
	return e
}

func (m *CodecVersion) Unmarshal(b []byte) error {
	*m = CodecVersion{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.Alpha = f.int32()
		case 2:
			m.Beta = f.int32()
		case 3:
			m.PreferAlpha = f.bool()
		case 4:
			m.Opus = f.bool()
		}
		return nil
	})
}

type RequestBlob struct {
	SessionTexture     []uint32
	SessionComment     []uint32
	ChannelDescription []uint32
}

func (*RequestBlob) Type() MessageType { return TypeRequestBlob }

func (m *RequestBlob) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32s(1, m.SessionTexture)
	e.uint32s(2, m.SessionComment)
	e.uint32s(3, m.ChannelDescription)
	return e
}

func (m *RequestBlob) Unmarshal(b []byte) error {
	*m = RequestBlob{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.SessionTexture, err = f.appendUint32s(m.SessionTexture)
		case 2:
			m.SessionComment, err = f.appendUint32s(m.SessionComment)
		case 3:
			m.ChannelDescription, err = f.appendUint32s(m.ChannelDescription)
		}
		return err
	})
}

type ServerConfig struct {
	MaxBandwidth       *uint32
	WelcomeText        *string
	AllowHTML          *bool
	MessageLength      *uint32
	ImageMessageLength *uint32
	MaxUsers           *uint32
	RecordingAllowed   *bool
}

func (*ServerConfig) Type() MessageType { return TypeServerConfig }

func (m *ServerConfig) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.MaxBandwidth)
	e.string(2, m.WelcomeText)
	e.bool(3, m.AllowHTML)
	e.uint32(4, m.MessageLength)
	e.uint32(5, m.ImageMessageLength)
	e.uint32(6, m.MaxUsers)
	e.bool(7, m.RecordingAllowed)
	return e
}

func (m *ServerConfig) Unmarshal(b []byte) error {
	*m = ServerConfig{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.MaxBandwidth = f.uint32()
		case 2:
			m.WelcomeText = f.string()
		case 3:
			m.AllowHTML = f.bool()
		case 4:
			m.MessageLength = f.uint32()
		case 5:
			m.ImageMessageLength = f.uint32()
		case 6:
			m.MaxUsers = f.uint32()
		case 7:
			m.RecordingAllowed = f.bool()
		}
		return nil
	})
}

type SuggestConfig struct {
	VersionV1  *uint32
	Positional *bool
	PushToTalk *bool
	VersionV2  *uint64
}

func (*SuggestConfig) Type() MessageType { return TypeSuggestConfig }

func (m *SuggestConfig) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.VersionV1)
	e.bool(2, m.Positional)
	e.bool(3, m.PushToTalk)
	e.uint64(4, m.VersionV2)
	return e
}

func (m *SuggestConfig) Unmarshal(b []byte) error {
	*m = SuggestConfig{}
	return walk(b, func(f field) error {
		switch f.num {
		case 1:
			m.VersionV1 = f.uint32()
		case 2:
			m.Positional = f.bool()
		case 3:
			m.PushToTalk = f.bool()
		case 4:
			m.VersionV2 = f.uint64()
		}
		return nil
	})
}

type PluginDataTransmission struct {
	SenderSession    *uint32
	ReceiverSessions []uint32
	Data             []byte
	DataID           *string
}

func (*PluginDataTransmission) Type() MessageType { return TypePluginDataTransmission }

func (m *PluginDataTransmission) AppendMarshal(b []byte) []byte {
	e := encoder(b)
	e.uint32(1, m.SenderSession)
	e.uint32s(2, m.ReceiverSessions)
	e.bytes(3, m.Data)
	e.string(4, m.DataID)
	return e
}

func (m *PluginDataTransmission) Unmarshal(b []byte) error {
	*m = PluginDataTransmission{}
	return walk(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.SenderSession = f.uint32()
		case 2:
			m.ReceiverSessions, err = f.appendUint32s(m.ReceiverSessions)
		case 3:
			m.Data = f.bytes()
		case 4:
			m.DataID = f.string()
		}
		return err
	})
}

// Raw holds a message the client does not interpret. The payload is kept
// verbatim so it can be forwarded or logged.
type Raw struct {
	MessageType MessageType
	Payload     []byte
}

func (m *Raw) Type() MessageType { return m.MessageType }

func (m *Raw) AppendMarshal(b []byte) []byte {
	return append(b, m.Payload...)
}

func (m *Raw) Unmarshal(b []byte) error {
	m.Payload = append([]byte{}, b...)
	return nil
}
