package templates

import _ "embed"

var (
	//go:embed resource/help.txt
	Help string
	//go:embed resource/unexpectedError.txt
	UnexpectedError string
	//go:embed resource/unknownCommand.txt
	UnknownCommand string
	//go:embed resource/emptyUrl.txt
	EmptyUrl string
	//go:embed resource/channelList.txt
	ChannelList string
	//go:embed resource/noChannels.txt
	NoChannels string
	//go:embed resource/addSuccess.txt
	AddSuccess string
	//go:embed resource/alreadySubscribed.txt
	AlreadySubscribed string
	//go:embed resource/addError.txt
	AddError string
	//go:embed resource/channelUnavailable.txt
	ChannelUnavailable string
	//go:embed resource/removeSuccess.txt
	RemoveSuccess string
	//go:embed resource/removeError.txt
	RemoveError string
	//go:embed resource/newVideo.txt
	NewVideo string
)
