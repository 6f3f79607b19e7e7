package oops

import "fmt"

// Code pins down the exact failure within a Kind. Like Kind it implements
// error so it can be used as an errors.Is target.
type Code int

const (
	CodeNone Code = iota
	CodeIO
	CodeEOF
	CodeInvalidArg
	CodeOverflow
	CodeSignature
	CodeWidth
	CodeHeight
	CodeUserWidth
	CodeUserHeight
	CodeBitDepth
	CodeColorType
	CodeCompressionMethod
	CodeFilterMethod
	CodeInterlaceMethod
	CodeIHDRSize
	CodeNoIHDR
	CodeChunkPos
	CodeChunkSize
	CodeChunkCRC
	CodeChunkType
	CodeUnknownCritical
	CodeDupPLTE
	CodeDupCHRM
	CodeDupGAMA
	CodeDupICCP
	CodeDupSBIT
	CodeDupSRGB
	CodeDupBKGD
	CodeDupHIST
	CodeDupTRNS
	CodeDupPHYS
	CodeDupTIME
	CodeDupOFFS
	CodeDupEXIF
	CodeCHRM
	CodePLTEIndex
	CodeTRNSColorType
	CodeTRNSNoPLTE
	CodeGAMA
	CodeICCPName
	CodeICCPCompressionMethod
	CodeSBIT
	CodeSRGB
	CodeText
	CodeTextKeyword
	CodeZTXt
	CodeZTXtCompressionMethod
	CodeITXt
	CodeITXtCompressionFlag
	CodeITXtCompressionMethod
	CodeITXtLangTag
	CodeITXtTranslatedKey
	CodeBKGDNoPLTE
	CodeBKGDPLTEIndex
	CodeHISTNoPLTE
	CodePHYS
	CodeSPLTName
	CodeSPLTDupName
	CodeSPLTDepth
	CodeTime
	CodeOFFS
	CodeExif
	CodeIDATTooShort
	CodeIDATStream
	CodeZlib
	CodeFilter
	CodeBufSize
	CodeBufSet
	CodeBadState
	CodeFormat
	CodeFlags
	CodeNoPLTE
	CodeChunkLimits
	CodeDecodedSize
	CodePLTE
	CodeIEND
)

var codeNames = map[Code]string{
	CodeNone:                  "no error",
	CodeIO:                    "stream read failed",
	CodeEOF:                   "unexpected end of stream",
	CodeInvalidArg:            "invalid argument",
	CodeOverflow:              "arithmetic overflow",
	CodeSignature:             "invalid signature",
	CodeWidth:                 "invalid image width",
	CodeHeight:                "invalid image height",
	CodeUserWidth:             "image width exceeds user limit",
	CodeUserHeight:            "image height exceeds user limit",
	CodeBitDepth:              "invalid bit depth",
	CodeColorType:             "invalid color type",
	CodeCompressionMethod:     "invalid compression method",
	CodeFilterMethod:          "invalid filter method",
	CodeInterlaceMethod:       "invalid interlace method",
	CodeIHDRSize:              "invalid IHDR chunk size",
	CodeNoIHDR:                "first chunk is not IHDR",
	CodeChunkPos:              "chunk out of order",
	CodeChunkSize:             "invalid chunk length",
	CodeChunkCRC:              "chunk CRC mismatch",
	CodeChunkType:             "invalid chunk type",
	CodeUnknownCritical:       "unknown critical chunk",
	CodeDupPLTE:               "duplicate PLTE chunk",
	CodeDupCHRM:               "duplicate cHRM chunk",
	CodeDupGAMA:               "duplicate gAMA chunk",
	CodeDupICCP:               "duplicate iCCP chunk",
	CodeDupSBIT:               "duplicate sBIT chunk",
	CodeDupSRGB:               "duplicate sRGB chunk",
	CodeDupBKGD:               "duplicate bKGD chunk",
	CodeDupHIST:               "duplicate hIST chunk",
	CodeDupTRNS:               "duplicate tRNS chunk",
	CodeDupPHYS:               "duplicate pHYs chunk",
	CodeDupTIME:               "duplicate tIME chunk",
	CodeDupOFFS:               "duplicate oFFs chunk",
	CodeDupEXIF:               "duplicate eXIf chunk",
	CodeCHRM:                  "invalid cHRM chunk",
	CodePLTEIndex:             "palette index out of range",
	CodeTRNSColorType:         "tRNS not allowed for color type",
	CodeTRNSNoPLTE:            "tRNS before PLTE",
	CodeGAMA:                  "invalid gAMA chunk",
	CodeICCPName:              "invalid iCCP profile name",
	CodeICCPCompressionMethod: "invalid iCCP compression method",
	CodeSBIT:                  "invalid sBIT chunk",
	CodeSRGB:                  "invalid sRGB chunk",
	CodeText:                  "invalid tEXt chunk",
	CodeTextKeyword:           "invalid text keyword",
	CodeZTXt:                  "invalid zTXt chunk",
	CodeZTXtCompressionMethod: "invalid zTXt compression method",
	CodeITXt:                  "invalid iTXt chunk",
	CodeITXtCompressionFlag:   "invalid iTXt compression flag",
	CodeITXtCompressionMethod: "invalid iTXt compression method",
	CodeITXtLangTag:           "invalid iTXt language tag",
	CodeITXtTranslatedKey:     "invalid iTXt translated keyword",
	CodeBKGDNoPLTE:            "bKGD before PLTE",
	CodeBKGDPLTEIndex:         "bKGD palette index out of range",
	CodeHISTNoPLTE:            "hIST without PLTE",
	CodePHYS:                  "invalid pHYs chunk",
	CodeSPLTName:              "invalid sPLT name",
	CodeSPLTDupName:           "duplicate sPLT name",
	CodeSPLTDepth:             "invalid sPLT sample depth",
	CodeTime:                  "invalid tIME chunk",
	CodeOFFS:                  "invalid oFFs chunk",
	CodeExif:                  "invalid eXIf chunk",
	CodeIDATTooShort:          "not enough image data",
	CodeIDATStream:            "too much image data",
	CodeZlib:                  "malformed zlib stream",
	CodeFilter:                "invalid filter type",
	CodeBufSize:               "output buffer size mismatch",
	CodeBufSet:                "source already set",
	CodeBadState:              "operation not valid in current state",
	CodeFormat:                "unsupported output format",
	CodeFlags:                 "invalid decode flags",
	CodeNoPLTE:                "missing PLTE chunk for indexed image",
	CodeChunkLimits:           "chunk exceeds size limit",
	CodeDecodedSize:           "decoded image exceeds size limit",
	CodePLTE:                  "invalid PLTE chunk",
	CodeIEND:                  "invalid IEND chunk",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

func (c Code) Error() string { return "png: " + c.String() }
