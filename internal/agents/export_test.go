package agents

var UrgentLabels = urgentLabels
