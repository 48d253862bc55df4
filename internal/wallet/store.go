package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "walrus-agent/internal/errors"
	"walrus-agent/pkg/logger"
)

// DefaultDataFile 是凭据文件的默认相对路径。
const DefaultDataFile = "wallet_data.txt"

// Credentials 对应凭据文件中的 JSON 记录。
type Credentials struct {
	PrivateKey         string `json:"private_key"`
	SmartWalletAddress string `json:"smart_wallet_address"`
}

// Store 负责读写本地凭据文件。多个进程共享同一文件时不提供任何互斥保护。
type Store struct {
	path string
}

// NewStore 创建凭据存储，路径为空时使用 wallet_data.txt。
func NewStore(path string) *Store {
	if strings.TrimSpace(path) == "" {
		path = DefaultDataFile
	}
	return &Store{path: path}
}

// Path 返回凭据文件路径。
func (s *Store) Path() string {
	return s.path
}

// Load 读取凭据文件。文件不存在时返回空记录；内容损坏时记录告警并返回空记录。
func (s *Store) Load() (Credentials, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取凭据文件失败")
	}

	var creds Credentials
	if err := json.Unmarshal(content, &creds); err != nil {
		logger.Component("wallet").Warn("凭据文件格式无效，将创建新的钱包",
			slog.String("path", s.path), slog.String("error", err.Error()))
		return Credentials{}, nil
	}
	creds.PrivateKey = strings.TrimSpace(creds.PrivateKey)
	creds.SmartWalletAddress = strings.TrimSpace(creds.SmartWalletAddress)
	return creds, nil
}

// Resolve 按照 文件私钥 -> 环境变量私钥 -> 新生成私钥 的顺序确定签名私钥。
// 返回值 generated 表示是否生成了新的私钥。
func (s *Store) Resolve(stored Credentials, envKey string) (Credentials, bool, error) {
	log := logger.Component("wallet")

	if stored.PrivateKey != "" {
		if _, err := ParsePrivateKey(stored.PrivateKey); err == nil {
			return stored, false, nil
		}
		log.Warn("凭据文件中的私钥无效，已忽略", slog.String("path", s.path))
		stored = Credentials{}
	}

	if envKey = strings.TrimSpace(envKey); envKey != "" {
		if _, err := ParsePrivateKey(envKey); err != nil {
			return Credentials{}, false, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "环境变量 PRIVATE_KEY 不是有效的私钥")
		}
		return Credentials{PrivateKey: envKey, SmartWalletAddress: stored.SmartWalletAddress}, false, nil
	}

	key, err := GenerateKey()
	if err != nil {
		return Credentials{}, false, err
	}
	log.Info("Created new private key and saved to " + filepath.Base(s.path))
	log.Info("We recommend you save this private key to your .env file and delete " + filepath.Base(s.path) + " afterwards.")
	return Credentials{PrivateKey: key}, true, nil
}

// Save 以 0600 权限覆盖写入凭据文件。
func (s *Store) Save(creds Credentials) error {
	if strings.TrimSpace(creds.PrivateKey) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "拒绝写入空私钥")
	}

	payload, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化凭据失败")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".wallet-*.tmp")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建临时凭据文件失败")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "设置凭据文件权限失败")
	}
	if _, err := tmp.Write(append(payload, '\n')); err != nil {
		tmp.Close()
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入凭据文件失败")
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入凭据文件失败")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "替换凭据文件失败")
	}
	return nil
}

// ParsePrivateKey 解析十六进制 secp256k1 私钥，允许带 0x 前缀。
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	trimmed = strings.TrimPrefix(trimmed, "0X")
	if trimmed == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "私钥不能为空")
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "私钥格式无效")
	}
	return key, nil
}

// GenerateKey 生成新的 secp256k1 私钥，返回带 0x 前缀的十六进制字符串。
func GenerateKey() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeWalletFailure, err, "生成私钥失败")
	}
	return hexutil.Encode(crypto.FromECDSA(key)), nil
}

// AddressOf 返回私钥对应的账户地址。
func AddressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
