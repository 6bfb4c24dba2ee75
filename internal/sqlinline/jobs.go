// Package sqlinline holds every SQL statement the service executes. Each
// statement starts with a --sql marker line used by infra.SQLRunner for
// statement-level logging.
package sqlinline

const jobColumns = `id, prompt, model, parameters, status, external_id, retry_count,
       error_message, file_path, result_url, file_size,
       created_at, updated_at, started_at, completed_at`

const QInsertJob = `--sql ee9e9b89-1726-4b1f-aa16-f17553d4028b
insert into jobs (id, prompt, model, parameters, status, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $6);
`

const QGetJob = `--sql 59b6a5dc-b3c4-41f3-84e0-fea48c109d7f
select ` + jobColumns + `
from jobs
where id = $1;
`

const QListJobs = `--sql 2a740e0c-01da-46ba-b326-4fe08344ff98
select ` + jobColumns + `
from jobs
where ($1 = '' or status = $1)
order by created_at desc
limit $2 offset $3;
`

// QMarkProcessing is the entry transition of one orchestration attempt:
// pending jobs move to processing, resumed processing jobs stay put, and
// either way the attempt is counted. started_at is written once.
const QMarkProcessing = `--sql acedbe15-7d66-4127-8336-1c194a1e4dca
update jobs
set status      = 'processing',
    started_at  = coalesce(started_at, now()),
    retry_count = retry_count + 1,
    updated_at  = now()
where id = $1
  and status in ('pending', 'processing')
returning ` + jobColumns + `;
`

// QSetExternalID is write-once: the guard on the empty handle keeps a
// resumed attempt from ever replacing the original submission handle.
const QSetExternalID = `--sql e8a570d5-5543-48de-835b-8f0cca904aad
update jobs
set external_id = $2,
    updated_at  = now()
where id = $1
  and external_id = '';
`

const QMarkCompleted = `--sql 55f7ca98-c0af-4019-b963-70d84bb9d6b2
update jobs
set status       = 'completed',
    file_path    = $2,
    result_url   = $3,
    file_size    = $4,
    completed_at = coalesce(completed_at, now()),
    updated_at   = now()
where id = $1
  and status = 'processing';
`

const QMarkFailed = `--sql 0f27ddf2-6b5e-44e2-a0f5-ed8ab9ccc905
update jobs
set status        = 'failed',
    error_message = $2,
    completed_at  = coalesce(completed_at, now()),
    updated_at    = now()
where id = $1
  and status = 'processing';
`

const QRequestCancel = `--sql d0dbd67e-b8da-45ea-a0fe-dedfeeab573b
update jobs
set status       = 'cancelled',
    completed_at = coalesce(completed_at, now()),
    updated_at   = now()
where id = $1
  and status in ('pending', 'processing');
`

// QListRunnable picks up fresh work plus processing rows nobody has
// touched since the stall threshold (attempts orphaned by a crash). The
// per-job lease keeps two workers from advancing the same id.
const QListRunnable = `--sql 248ad9bc-b914-4695-b437-ceefe0aad1da
select id
from jobs
where status = 'pending'
   or (status = 'processing' and updated_at < $1)
order by created_at asc
limit $2;
`

const QListReclaimable = `--sql 33a668df-be58-44cc-bc82-81a2cdc17e52
select ` + jobColumns + `
from jobs
where status = 'completed'
  and completed_at < $1
  and file_path <> ''
order by completed_at asc
limit $2;
`

const QClearResult = `--sql ac1f02b8-202d-4c4d-ac90-f38c5910eeca
update jobs
set file_path  = '',
    result_url = '',
    file_size  = 0,
    updated_at = now()
where id = $1
  and status = 'completed';
`

const QJobStatus = `--sql 44a2f472-160e-4b79-81aa-203d5202ad55
select status
from jobs
where id = $1;
`
