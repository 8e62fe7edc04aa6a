package serial

type BaudRate int

func (b BaudRate) Int() int {
	return int(b)
}

const (
	Baud4800    BaudRate = 4800
	Baud9600    BaudRate = 9600
	Baud19200   BaudRate = 19200
	Baud38400   BaudRate = 38400
	Baud57600   BaudRate = 57600
	Baud115200  BaudRate = 115200
	Baud230400  BaudRate = 230400
	Baud460800  BaudRate = 460800
	Baud500000  BaudRate = 500000
	Baud576000  BaudRate = 576000
	Baud921600  BaudRate = 921600
	Baud1000000 BaudRate = 1000000
	Baud1500000 BaudRate = 1500000
	Baud2000000 BaudRate = 2000000
)

// CommonBaudRates lists the rates a frontend should offer for selection.
var CommonBaudRates = []BaudRate{
	Baud4800, Baud9600, Baud19200, Baud38400, Baud57600, Baud115200,
	Baud230400, Baud460800, Baud500000, Baud576000, Baud921600,
	Baud1000000, Baud1500000, Baud2000000,
}
