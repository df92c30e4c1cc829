package service

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	l1ChainID       = 1337
	sourceMainnet   = "a"
	sourceTestnet   = "b"
	domainName      = "Exchange"
	domainVersion   = "1"
	domainTypeSig   = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	agentTypeSig    = "Agent(string source,bytes32 connectionId)"
	eip712Prefix    = "\x19\x01"
	noVaultAddrByte = 0x00
)

type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer produces L1 action signatures: keccak(msgpack(action)|nonce|vault)
// wrapped in an EIP-712 phantom agent.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	mainnet bool
}

func NewSigner(hexKey string, mainnet bool) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse secret key")
	}
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		mainnet: mainnet,
	}, nil
}

func (s *Signer) Address() string { return s.address.Hex() }

func (s *Signer) Sign(action any, nonce int64) (Signature, error) {
	digest, err := s.digest(action, nonce)
	if err != nil {
		return Signature{}, err
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return Signature{}, errors.Wrap(err, "sign action")
	}
	return Signature{
		R: hexutil.EncodeBig(new(big.Int).SetBytes(sig[:32])),
		S: hexutil.EncodeBig(new(big.Int).SetBytes(sig[32:64])),
		V: int(sig[64]) + 27,
	}, nil
}

func (s *Signer) digest(action any, nonce int64) ([]byte, error) {
	hash, err := actionHash(action, nonce)
	if err != nil {
		return nil, err
	}
	source := sourceTestnet
	if s.mainnet {
		source = sourceMainnet
	}
	structHash := crypto.Keccak256(
		crypto.Keccak256([]byte(agentTypeSig)),
		crypto.Keccak256([]byte(source)),
		hash,
	)
	return crypto.Keccak256([]byte(eip712Prefix), domainSeparator(), structHash), nil
}

func domainSeparator() []byte {
	return crypto.Keccak256(
		crypto.Keccak256([]byte(domainTypeSig)),
		crypto.Keccak256([]byte(domainName)),
		crypto.Keccak256([]byte(domainVersion)),
		common.LeftPadBytes(big.NewInt(l1ChainID).Bytes(), 32),
		common.LeftPadBytes(common.Address{}.Bytes(), 32),
	)
}

func actionHash(action any, nonce int64) ([]byte, error) {
	packed, err := packAction(action)
	if err != nil {
		return nil, err
	}
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(nonce))
	packed = append(packed, n[:]...)
	packed = append(packed, noVaultAddrByte)
	return crypto.Keccak256(packed), nil
}

func packAction(action any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(action); err != nil {
		return nil, errors.Wrap(err, "msgpack action")
	}
	return buf.Bytes(), nil
}
