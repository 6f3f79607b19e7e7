package spng

import (
	"errors"

	"spng.adpollak.net/internal/oops"
)

// Error is returned by every failing operation. Use errors.Is with a Kind
// or a Code to classify it.
type Error = oops.Error

// Kind is the broad class of a failure.
type Kind = oops.Kind

// Code identifies the exact failure.
type Code = oops.Code

const (
	IoError            = oops.IoError
	FormatError        = oops.FormatError
	CorruptData        = oops.CorruptData
	LimitExceeded      = oops.LimitExceeded
	UnsupportedFeature = oops.UnsupportedFeature
	UsageError         = oops.UsageError
)

// ErrNoChunk is returned by Context getters when the chunk was not in the
// image. It does not affect the Context.
var ErrNoChunk = errors.New("png: chunk not present")

const (
	CodeNone                  = oops.CodeNone
	CodeIO                    = oops.CodeIO
	CodeEOF                   = oops.CodeEOF
	CodeInvalidArg            = oops.CodeInvalidArg
	CodeOverflow              = oops.CodeOverflow
	CodeSignature             = oops.CodeSignature
	CodeWidth                 = oops.CodeWidth
	CodeHeight                = oops.CodeHeight
	CodeUserWidth             = oops.CodeUserWidth
	CodeUserHeight            = oops.CodeUserHeight
	CodeBitDepth              = oops.CodeBitDepth
	CodeColorType             = oops.CodeColorType
	CodeCompressionMethod     = oops.CodeCompressionMethod
	CodeFilterMethod          = oops.CodeFilterMethod
	CodeInterlaceMethod       = oops.CodeInterlaceMethod
	CodeIHDRSize              = oops.CodeIHDRSize
	CodeNoIHDR                = oops.CodeNoIHDR
	CodeChunkPos              = oops.CodeChunkPos
	CodeChunkSize             = oops.CodeChunkSize
	CodeChunkCRC              = oops.CodeChunkCRC
	CodeChunkType             = oops.CodeChunkType
	CodeUnknownCritical       = oops.CodeUnknownCritical
	CodeDupPLTE               = oops.CodeDupPLTE
	CodeDupCHRM               = oops.CodeDupCHRM
	CodeDupGAMA               = oops.CodeDupGAMA
	CodeDupICCP               = oops.CodeDupICCP
	CodeDupSBIT               = oops.CodeDupSBIT
	CodeDupSRGB               = oops.CodeDupSRGB
	CodeDupBKGD               = oops.CodeDupBKGD
	CodeDupHIST               = oops.CodeDupHIST
	CodeDupTRNS               = oops.CodeDupTRNS
	CodeDupPHYS               = oops.CodeDupPHYS
	CodeDupTIME               = oops.CodeDupTIME
	CodeDupOFFS               = oops.CodeDupOFFS
	CodeDupEXIF               = oops.CodeDupEXIF
	CodeCHRM                  = oops.CodeCHRM
	CodePLTEIndex             = oops.CodePLTEIndex
	CodeTRNSColorType         = oops.CodeTRNSColorType
	CodeTRNSNoPLTE            = oops.CodeTRNSNoPLTE
	CodeGAMA                  = oops.CodeGAMA
	CodeICCPName              = oops.CodeICCPName
	CodeICCPCompressionMethod = oops.CodeICCPCompressionMethod
	CodeSBIT                  = oops.CodeSBIT
	CodeSRGB                  = oops.CodeSRGB
	CodeText                  = oops.CodeText
	CodeTextKeyword           = oops.CodeTextKeyword
	CodeZTXt                  = oops.CodeZTXt
	CodeZTXtCompressionMethod = oops.CodeZTXtCompressionMethod
	CodeITXt                  = oops.CodeITXt
	CodeITXtCompressionFlag   = oops.CodeITXtCompressionFlag
	CodeITXtCompressionMethod = oops.CodeITXtCompressionMethod
	CodeITXtLangTag           = oops.CodeITXtLangTag
	CodeITXtTranslatedKey     = oops.CodeITXtTranslatedKey
	CodeBKGDNoPLTE            = oops.CodeBKGDNoPLTE
	CodeBKGDPLTEIndex         = oops.CodeBKGDPLTEIndex
	CodeHISTNoPLTE            = oops.CodeHISTNoPLTE
	CodePHYS                  = oops.CodePHYS
	CodeSPLTName              = oops.CodeSPLTName
	CodeSPLTDupName           = oops.CodeSPLTDupName
	CodeSPLTDepth             = oops.CodeSPLTDepth
	CodeTime                  = oops.CodeTime
	CodeOFFS                  = oops.CodeOFFS
	CodeExif                  = oops.CodeExif
	CodeIDATTooShort          = oops.CodeIDATTooShort
	CodeIDATStream            = oops.CodeIDATStream
	CodeZlib                  = oops.CodeZlib
	CodeFilter                = oops.CodeFilter
	CodeBufSize               = oops.CodeBufSize
	CodeBufSet                = oops.CodeBufSet
	CodeBadState              = oops.CodeBadState
	CodeFormat                = oops.CodeFormat
	CodeFlags                 = oops.CodeFlags
	CodeNoPLTE                = oops.CodeNoPLTE
	CodeChunkLimits           = oops.CodeChunkLimits
	CodeDecodedSize           = oops.CodeDecodedSize
	CodePLTE                  = oops.CodePLTE
	CodeIEND                  = oops.CodeIEND
)
