package abi

import "strconv"

// Status is the in-band result code returned to the guest.
type Status int32

// Status codes shared by every module in the ABI.
const (
	StatusOK             Status = 0
	StatusError          Status = 1
	StatusInval          Status = 2
	StatusBadf           Status = 3
	StatusBuflen         Status = 4
	StatusUnsupported    Status = 5
	StatusBadalign       Status = 6
	StatusHTTPInvalid    Status = 7
	StatusHTTPUser       Status = 8
	StatusHTTPIncomplete Status = 9
	StatusNone           Status = 10
)

var statusNames = map[Status]string{
	StatusOK:             "OK",
	StatusError:          "ERROR",
	StatusInval:          "INVAL",
	StatusBadf:           "BADF",
	StatusBuflen:         "BUFLEN",
	StatusUnsupported:    "UNSUPPORTED",
	StatusBadalign:       "BADALIGN",
	StatusHTTPInvalid:    "HTTPINVALID",
	StatusHTTPUser:       "HTTPUSER",
	StatusHTTPIncomplete: "HTTPINCOMPLETE",
	StatusNone:           "NONE",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// Code returns the status as the raw i32 sent to the guest.
func (s Status) Code() int32 {
	return int32(s)
}
